package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dialer-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serve(t *testing.T, agentID, teamID, role string, allowed ...string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), agentID, teamID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireTeam(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serve(t, "a", "t", RoleAdmin, RoleSupervisor); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AgentDeniedSupervisorRoute(t *testing.T) {
	if code := serve(t, "a", "t", RoleAgent, RoleSupervisor); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_AgentAllowed(t *testing.T) {
	if code := serve(t, "a", "t", RoleAgent, RoleAgent, RoleSupervisor); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireTeam_MissingTeamRejected(t *testing.T) {
	if code := serve(t, "a", "", RoleAgent, RoleAgent); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}
