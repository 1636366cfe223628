package monitor_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/covey-rooms/internal/monitor"
)

func TestNewServer(t *testing.T) {
	srv, err := monitor.NewServer(6060)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:6060", srv.Addr)

	req := httptest.NewRequest(http.MethodGet, monitor.Path, nil)
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
