package router

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/rs/xid"
	"gopkg.in/go-playground/validator.v9"
)

// Validator adapts validator.v9 to echo.Validator
type Validator struct {
	validator *validator.Validate
}

// NewValidator func
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		validator: v,
	}
}

// Validate reports the json names of the fields that failed validation
func (v *Validator) Validate(i interface{}) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
}

// New function
func New(lvl log.Lvl, metricsEnabled bool) *echo.Echo {
	e := echo.New()

	logConfig := middleware.DefaultLoggerConfig
	logConfig.Skipper = func(c echo.Context) bool {
		return lvl > log.INFO // access logs are informational
	}

	e.Logger.SetLevel(lvl)
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return xid.New().String()
		},
	}))
	e.Use(middleware.LoggerWithConfig(logConfig))
	e.Use(middleware.Recover())
	if metricsEnabled {
		e.Use(echoprometheus.NewMiddleware("wgrelay"))
		e.GET("/metrics", echoprometheus.NewHandler())
	}
	e.HideBanner = true
	e.HidePort = lvl > log.INFO // hide the port output if the log level is higher than INFO
	e.Validator = NewValidator()

	return e
}
