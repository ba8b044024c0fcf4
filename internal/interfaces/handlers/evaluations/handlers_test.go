package evaluations

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	evalsvc "anggaran-backend/internal/application/evaluations"
	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	app         *fiber.App
	realization domain.Realization
}

func setupEvaluationsTest(t *testing.T) *fixture {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	unit := domain.OrganizationalUnit{Code: "DINKES", Name: "Dinas Kesehatan"}
	require.NoError(t, db.Create(&unit).Error)
	var parent *uuid.UUID
	full := ""
	var sub domain.ProgramNode
	for _, level := range domain.ProgramLevels {
		sub = domain.ProgramNode{Level: level, ParentID: parent, Code: "1", FullCode: domain.JoinCode(full, "1"), Name: string(level)}
		if level == domain.LevelSubActivity {
			sub.OrganizationalUnitID = &unit.ID
		}
		require.NoError(t, db.Create(&sub).Error)
		id := sub.ID
		parent = &id
		full = sub.FullCode
	}
	account := domain.Account{Code: "1", FullCode: "5.1", Name: "Belanja Pegawai", Level: 2, IsLeaf: true}
	require.NoError(t, db.Create(&account).Error)

	f := &fixture{realization: domain.Realization{
		AccountID:            account.ID,
		SubActivityID:        sub.ID,
		OrganizationalUnitID: &unit.ID,
		Month:                3,
		Year:                 2026,
		BudgetAmount:         decimal.NewFromInt(1_000_000),
		RealizationAmount:    decimal.NewFromInt(500_000),
		CreatedBy:            domain.ActorFromLabel("seed"),
		UpdatedBy:            domain.ActorFromLabel("seed"),
	}}
	require.NoError(t, db.Create(&f.realization).Error)

	h := &Handlers{Service: &evalsvc.Service{DB: db}}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{"fullname": "Inspektur", "role": "evaluator"})
		return c.Next()
	})
	app.Get("/evaluations", h.List)
	app.Get("/evaluations/low-absorption", h.LowAbsorption)
	app.Get("/evaluations/summary", h.Summary)
	app.Get("/evaluations/by-realization/:realizationId", h.GetByRealization)
	app.Get("/evaluations/:id", h.Get)
	app.Post("/evaluations", h.Create)
	app.Put("/evaluations/:id", h.Update)
	app.Post("/evaluations/:id/approve", h.Approve)
	app.Post("/evaluations/:id/follow-ups", h.AddFollowUp)
	app.Patch("/evaluations/:id/follow-ups/:index", h.UpdateFollowUpStatus)
	app.Delete("/evaluations/:id", h.Delete)
	f.app = app
	return f
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

func (f *fixture) body() map[string]interface{} {
	return map[string]interface{}{
		"realizationId":            f.realization.ID.String(),
		"evaluationStatus":         "poor",
		"speedOfExecution":         "slow",
		"fundAbsorptionEfficiency": "poor",
		"procurementCapability":    "needs_improvement",
		"problems":                 []string{"Lelang gagal"},
	}
}

func TestCreateEvaluation_MissingAssessmentField(t *testing.T) {
	f := setupEvaluationsTest(t)
	b := f.body()
	delete(b, "speedOfExecution")
	status, out := call(t, f.app, "POST", "/evaluations", b)
	assert.Equal(t, 400, status)
	assert.Equal(t, "Missing required field: speedOfExecution", out["message"])

	b = f.body()
	b["evaluationStatus"] = "awful"
	status, out = call(t, f.app, "POST", "/evaluations", b)
	assert.Equal(t, 400, status)
	assert.Equal(t, "ValidationError", out["error"].(map[string]interface{})["kind"])
}

func TestEvaluation_Lifecycle(t *testing.T) {
	f := setupEvaluationsTest(t)

	status, out := call(t, f.app, "POST", "/evaluations", f.body())
	require.Equal(t, 201, status)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "50", data["absorptionRate"])
	assert.Equal(t, "Inspektur", data["evaluatedBy"].(map[string]interface{})["label"])
	id := data["id"].(string)

	status, _ = call(t, f.app, "POST", "/evaluations", f.body())
	assert.Equal(t, 409, status)

	status, out = call(t, f.app, "GET", "/evaluations/by-realization/"+f.realization.ID.String(), nil)
	require.Equal(t, 200, status)
	assert.Equal(t, id, out["data"].(map[string]interface{})["id"])

	status, out = call(t, f.app, "GET", "/evaluations/low-absorption", nil)
	require.Equal(t, 200, status)
	assert.Len(t, out["data"], 1)
	status, out = call(t, f.app, "GET", "/evaluations/low-absorption?threshold=40", nil)
	require.Equal(t, 200, status)
	assert.Len(t, out["data"], 0)
	status, _ = call(t, f.app, "GET", "/evaluations/low-absorption?threshold=abc", nil)
	assert.Equal(t, 400, status)

	status, out = call(t, f.app, "PUT", "/evaluations/"+id, map[string]interface{}{"evaluationStatus": "good", "generalNotes": "Membaik"})
	require.Equal(t, 200, status)
	assert.Equal(t, "good", out["data"].(map[string]interface{})["evaluationStatus"])

	status, out = call(t, f.app, "POST", "/evaluations/"+id+"/approve", nil)
	require.Equal(t, 200, status)
	assert.Equal(t, true, out["data"].(map[string]interface{})["isApproved"])

	status, out = call(t, f.app, "GET", "/evaluations?approved=true&year=2026", nil)
	require.Equal(t, 200, status)
	assert.EqualValues(t, 1, out["pagination"].(map[string]interface{})["total"])

	status, _ = call(t, f.app, "POST", "/evaluations/"+id+"/follow-ups", map[string]interface{}{})
	assert.Equal(t, 400, status)
	status, out = call(t, f.app, "POST", "/evaluations/"+id+"/follow-ups", map[string]interface{}{
		"action":     "Percepat pengadaan",
		"assignedTo": map[string]interface{}{"kind": "label", "label": "PPK"},
	})
	require.Equal(t, 200, status)
	assert.Equal(t, true, out["data"].(map[string]interface{})["followUpRequired"])

	status, out = call(t, f.app, "PATCH", "/evaluations/"+id+"/follow-ups/0", map[string]interface{}{"status": "completed"})
	require.Equal(t, 200, status)
	action := out["data"].(map[string]interface{})["followUpActions"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "completed", action["status"])
	assert.NotNil(t, action["completedAt"])

	status, _ = call(t, f.app, "PATCH", "/evaluations/"+id+"/follow-ups/x", map[string]interface{}{"status": "completed"})
	assert.Equal(t, 400, status)

	status, out = call(t, f.app, "GET", "/evaluations/summary?month=3&year=2026", nil)
	require.Equal(t, 200, status)
	rows := out["data"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "DINKES", rows[0].(map[string]interface{})["unitCode"])

	status, _ = call(t, f.app, "DELETE", "/evaluations/"+id, nil)
	assert.Equal(t, 200, status)
	status, _ = call(t, f.app, "GET", "/evaluations/"+id, nil)
	assert.Equal(t, 404, status)
}
