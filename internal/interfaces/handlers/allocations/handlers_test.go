package allocations

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	allocsvc "anggaran-backend/internal/application/allocations"
	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	app *fiber.App
	sub domain.ProgramNode
	a1  domain.Account
	a2  domain.Account
}

func setupAllocationsTest(t *testing.T, withUser bool) *fixture {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	f := &fixture{sub: seedSubActivity(t, db)}
	f.a1 = domain.Account{Code: "1", FullCode: "5.1", Name: "Belanja Pegawai", Level: 2, IsLeaf: true}
	f.a2 = domain.Account{Code: "2", FullCode: "5.2", Name: "Belanja Barang", Level: 2, IsLeaf: true}
	require.NoError(t, db.Create(&f.a1).Error)
	require.NoError(t, db.Create(&f.a2).Error)

	h := &Handlers{Service: &allocsvc.Service{DB: db}}
	app := fiber.New()
	if withUser {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("user", map[string]interface{}{
				"user_id":  "00000000-0000-0000-0000-0000000000aa",
				"fullname": "Operator",
				"role":     "operator",
			})
			return c.Next()
		})
	}
	app.Get("/allocations", h.List)
	app.Get("/allocations/:id", h.Get)
	app.Post("/allocations", h.Create)
	app.Put("/allocations/:id", h.Update)
	app.Patch("/allocations/:id", h.Update)
	app.Delete("/allocations/:id", h.Delete)
	f.app = app
	return f
}

func seedSubActivity(t *testing.T, db *gorm.DB) domain.ProgramNode {
	var parent *uuid.UUID
	full := ""
	var node domain.ProgramNode
	for _, level := range domain.ProgramLevels {
		node = domain.ProgramNode{Level: level, ParentID: parent, Code: "1", FullCode: domain.JoinCode(full, "1"), Name: "Jalan " + string(level)}
		require.NoError(t, db.Create(&node).Error)
		id := node.ID
		parent = &id
		full = node.FullCode
	}
	return node
}

func call(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCreateAllocation_MissingField(t *testing.T) {
	f := setupAllocationsTest(t, true)
	status, out := call(t, f.app, "POST", "/allocations", map[string]interface{}{
		"subActivityId": f.sub.ID.String(),
		"allocations":   []interface{}{},
	})
	assert.Equal(t, 400, status)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Missing required field: budgetYear", out["message"])

	status, _ = call(t, f.app, "POST", "/allocations", map[string]interface{}{
		"subActivityId": f.sub.ID.String(), "budgetYear": "Murni", "allocations": []interface{}{},
	})
	assert.Equal(t, 400, status)

	status, out = call(t, f.app, "POST", "/allocations", map[string]interface{}{
		"subActivityId": f.sub.ID.String(), "budgetYear": "2026",
		"allocations": []map[string]interface{}{{"accountId": f.a1.ID.String()}},
	})
	assert.Equal(t, 400, status)
	assert.Equal(t, "Missing required field: allocations[0].amount", out["message"])
}

func TestCreateAllocation_RequiresActor(t *testing.T) {
	f := setupAllocationsTest(t, false)
	status, out := call(t, f.app, "POST", "/allocations", map[string]interface{}{
		"subActivityId": f.sub.ID.String(), "budgetYear": "2026", "allocations": []interface{}{},
	})
	assert.Equal(t, 401, status)
	assert.Equal(t, "Unauthorized", out["error"].(map[string]interface{})["kind"])
}

func TestAllocationLifecycle(t *testing.T) {
	f := setupAllocationsTest(t, true)
	status, out := call(t, f.app, "POST", "/allocations", map[string]interface{}{
		"subActivityId": f.sub.ID.String(),
		"budgetYear":    "2026-Murni",
		"allocations":   []map[string]interface{}{{"accountId": f.a1.ID.String(), "amount": 1000000}},
		"description":   "APBD murni",
	})
	require.Equal(t, 201, status)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "1000000", data["totalAmount"])
	id := data["id"].(string)
	lines := data["allocations"].([]interface{})
	require.Len(t, lines, 1)
	assert.Equal(t, "00000000-0000-0000-0000-0000000000aa", lines[0].(map[string]interface{})["allocatedBy"].(map[string]interface{})["id"])

	status, _ = call(t, f.app, "POST", "/allocations", map[string]interface{}{
		"subActivityId": f.sub.ID.String(), "budgetYear": "2026-Murni", "allocations": []interface{}{},
	})
	assert.Equal(t, 409, status)

	status, out = call(t, f.app, "PUT", "/allocations/"+id, map[string]interface{}{
		"allocations": []map[string]interface{}{
			{"accountId": f.a1.ID.String(), "amount": "1200000"},
			{"accountId": f.a2.ID.String(), "amount": 300000},
		},
	})
	require.Equal(t, 200, status)
	assert.Equal(t, "1500000", out["data"].(map[string]interface{})["totalAmount"])

	status, out = call(t, f.app, "GET", "/allocations?budgetYear=2026-Murni&search=pegawai", nil)
	require.Equal(t, 200, status)
	assert.EqualValues(t, 1, out["pagination"].(map[string]interface{})["total"])

	status, _ = call(t, f.app, "PATCH", "/allocations/not-a-uuid", map[string]interface{}{})
	assert.Equal(t, 400, status)
	status, _ = call(t, f.app, "PATCH", "/allocations/"+uuid.NewString(), map[string]interface{}{})
	assert.Equal(t, 404, status)

	status, _ = call(t, f.app, "DELETE", "/allocations/"+id, nil)
	assert.Equal(t, 200, status)
	status, _ = call(t, f.app, "GET", "/allocations/"+id, nil)
	assert.Equal(t, 404, status)
}
