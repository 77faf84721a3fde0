package server

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterBindingTags(t *testing.T) {
	v := validator.New()
	require.NoError(t, registerBindingTags(v))

	assert.NoError(t, v.Var("Red", "outcome"))
	assert.Error(t, v.Var("purple", "outcome"))
	assert.NoError(t, v.Var("public", "scope"))
	assert.NoError(t, v.Var("room:r1", "scope"))
	assert.Error(t, v.Var("room:", "scope"))
}

func TestRegisterValidators_InstallsTagsOnGinEngine(t *testing.T) {
	registerValidators()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	assert.NoError(t, v.Var("blue", "outcome"))
	assert.Error(t, v.Var("nope", "scope"))
}
