package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/scholar-tracker/internal/scholar"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitFailure, exitCode(errors.New("disk full")))
	assert.Equal(t, exitFailure, exitCode(context.Canceled))
	assert.Equal(t, exitCaptcha, exitCode(scholar.ErrCaptchaUnresolved))
	assert.Equal(t, exitCaptcha, exitCode(fmt.Errorf("run: %w", scholar.ErrCaptchaUnresolved)))
}
