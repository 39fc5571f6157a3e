package auth

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// RegisterAuthRoutes mounts the JSON auth surface on the given app.
func RegisterAuthRoutes(app *fiber.App, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Home, controller.HomeShow).Name("home.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).Name("register.post")
	app.Post(controller.Routes.Login, controller.LoginPost).Name("sign-in.post")

	app.Get(
		controller.Routes.Protected,
		ProtectedRoute(controller.Config, controller.Validator, controller.AuthErrorHandler),
		controller.ProtectedShow,
	).Name("protected.get")

	return controller
}

type AuthControllerRoutes struct {
	Home      string
	Register  string
	Login     string
	Protected string
}

type AuthController struct {
	Debug            bool
	Logger           Logger
	Repo             RepositoryManager
	Auther           Authenticator
	Config           Config
	Validator        TokenValidator
	Routes           *AuthControllerRoutes
	AuthErrorHandler fiber.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Home:      "/",
			Register:  "/register",
			Login:     "/login",
			Protected: "/protected",
		},
		AuthErrorHandler: defaultAuthErrorHandler,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	if c.Validator == nil {
		panic("Missing TokenValidator in auth controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithRepositoryManager(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithAuthConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithTokenValidator(validator TokenValidator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Validator = validator
		return c
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// HomeShow is the unauthenticated landing route
func (a *AuthController) HomeShow(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "welcome to the secure REST API",
	})
}

// AuthPayload is the request body shared by registration and login
type AuthPayload struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r AuthPayload) GetIdentifier() string {
	return r.Username
}

// GetPassword will return the password
func (r AuthPayload) GetPassword() string {
	return r.Password
}

// Validate will run validation rules, collecting every field violation
// instead of stopping at the first.
func (r AuthPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Username,
			validation.Required,
			validation.RuneLength(3, 80),
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.RuneLength(6, 0),
		),
	)
}

func (a *AuthController) RegistrationCreate(c *fiber.Ctx) error {
	payload := new(AuthPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"msg": "invalid request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Debug("register user validate payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"msg":    "validation failed",
			"errors": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(fiber.Map{"username": payload.Username}))
		fmt.Println("============================")
	}

	registerUser := NewRegisterUserHandler(a.Repo)
	if err := registerUser.Execute(c.UserContext(), RegisterUserMessage{
		Username: payload.Username,
		Password: payload.Password,
	}); err != nil {
		a.Logger.Error("register user execute", "error", err)
		return a.renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"msg": "registered",
	})
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(AuthPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"msg": "invalid request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Debug("login validate payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"msg":    "validation failed",
			"errors": FormatValidationErrorToMap(err),
		})
	}

	token, err := a.Auther.Login(c.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"access_token": token,
	})
}

// ProtectedShow echoes the subject the middleware validated. The claim in
// the token is authoritative; we do not re-fetch the record.
func (a *AuthController) ProtectedShow(c *fiber.Ctx) error {
	claims, ok := GetLocalClaims(c, a.Config.GetContextKey())
	if !ok {
		return defaultAuthErrorHandler(c, ErrUnableToMapClaims)
	}

	return c.JSON(fiber.Map{
		"logged_in_as": claims.Subject(),
	})
}

// renderError maps domain errors onto the response ladder. Internal
// details never make it into a response body.
func (a *AuthController) renderError(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		a.Logger.Error("unhandled controller error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"msg": "internal server error",
		})
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"msg": richErr.Message,
		})
	case goerrors.CategoryConflict:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"msg": richErr.Message,
		})
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"msg": richErr.Message,
		})
	case goerrors.CategoryNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"msg": richErr.Message,
		})
	default:
		a.Logger.Error("internal controller error", "error", richErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"msg": "internal server error",
		})
	}
}

func defaultAuthErrorHandler(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"msg": "missing or invalid token",
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for response bodies.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["payload"] = err.Error()
	return out
}
