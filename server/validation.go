package server

import (
	"fmt"
	"sync"

	"coino/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

var registerOnce sync.Once

// registerValidators adds the outcome and scope tags to gin's validator.
// Handlers depend on these tags, so a failure stops startup.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			log.Fatalf("Unexpected gin validator engine %T", binding.Validator.Engine())
		}
		if err := registerBindingTags(v); err != nil {
			log.WithError(err).Fatal("Failed to register request validators")
		}
	})
}

func registerBindingTags(v *validator.Validate) error {
	if err := v.RegisterValidation("outcome", func(fl validator.FieldLevel) bool {
		_, err := models.ParseOutcome(fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("outcome tag: %w", err)
	}
	if err := v.RegisterValidation("scope", func(fl validator.FieldLevel) bool {
		_, err := models.ParseScope(fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("scope tag: %w", err)
	}
	return nil
}

// placeBetRequest is the body of POST /api/bets
type placeBetRequest struct {
	Scope   string `json:"scope" binding:"omitempty,scope"`
	Outcome string `json:"outcome" binding:"required,outcome"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
}

// createRoomRequest is the body of POST /api/rooms
type createRoomRequest struct {
	Name string `json:"name" binding:"required,max=64"`
}
