package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVMDetails_NotFound(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		opts, out := setupApp(t, true)

		err := VMDetails(context.Background(), opts, "150")
		assert.ErrorIs(t, err, ErrReported)

		var body struct {
			Error struct {
				Status int `json:"status"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &body))
		assert.Equal(t, http.StatusNotFound, body.Error.Status)
	})

	t.Run("text", func(t *testing.T) {
		opts, _ := setupApp(t, false)

		err := VMDetails(context.Background(), opts, "150")
		var cmdErr *CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, http.StatusNotFound, cmdErr.HTTPStatus)
	})
}
