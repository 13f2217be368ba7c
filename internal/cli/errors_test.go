package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", boom, ExitGeneral},
		{"config", ConfigError("bad flag", boom), ExitConfig},
		{"setup", SetupError("creating world", boom), ExitSetup},
		{"populate", PopulateError("base snapshot", boom), ExitPopulate},
		{"wrapped", fmt.Errorf("run: %w", DBConnectError("dial", boom)), ExitDBConnect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	err := MigrationError("applying world migrations", errors.New("syntax error"))
	assert.Equal(t, "applying world migrations: syntax error", err.Error())
	assert.Equal(t, "health checks failed", GeneralError("health checks failed", nil).Error())
}
