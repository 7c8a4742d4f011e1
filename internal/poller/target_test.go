package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		raw     string
		want    Action
		wantErr bool
	}{
		{raw: "", want: ActionAdd},
		{raw: "0", want: ActionAdd},
		{raw: "add", want: ActionAdd},
		{raw: " ADD ", want: ActionAdd},
		{raw: "1", want: ActionRemove},
		{raw: "remove", want: ActionRemove},
		{raw: "5", want: ActionAdd, wantErr: true},
		{raw: "-1", want: ActionAdd, wantErr: true},
		{raw: "toggle", want: ActionAdd, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAction(tt.raw)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAction)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAction_FallbackIsZero(t *testing.T) {
	got, err := ParseAction("5")
	assert.Error(t, err)
	assert.Equal(t, 0, int(got))
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 200 * time.Millisecond},
		{raw: "200", want: 200 * time.Millisecond},
		{raw: "1500", want: 1500 * time.Millisecond},
		{raw: " 50\n", want: 50 * time.Millisecond},
		{raw: "abc", want: 200 * time.Millisecond, wantErr: true},
		{raw: "1.5", want: 200 * time.Millisecond, wantErr: true},
		{raw: "0", want: 200 * time.Millisecond, wantErr: true},
		{raw: "-10", want: 200 * time.Millisecond, wantErr: true},
		{raw: "5000000000", want: 5000000000 * time.Millisecond},
		{raw: "9223372036854", want: 9223372036854 * time.Millisecond},
		{raw: "9223372036855", want: 200 * time.Millisecond, wantErr: true},
		{raw: "18446744073709551615", want: 200 * time.Millisecond, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseInterval(tt.raw)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInterval)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "add", ActionAdd.String())
	assert.Equal(t, "remove", ActionRemove.String())
	assert.Equal(t, "action(9)", Action(9).String())
}
