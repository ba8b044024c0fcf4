package request

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryHelpers(t *testing.T) {
	app := fiber.New()
	var (
		unit          *uuid.UUID
		page, limit   int
		approved      *bool
		unitErr, pErr error
	)
	app.Get("/", func(c *fiber.Ctx) error {
		unit, unitErr = QueryID(c, "unitId")
		page, limit, pErr = Page(c)
		approved, _ = QueryBool(c, "approved")
		return nil
	})

	id := uuid.New()
	_, err := app.Test(httptest.NewRequest("GET", "/?unitId="+id.String()+"&page=2&limit=5&approved=true", nil))
	require.NoError(t, err)
	require.NoError(t, unitErr)
	require.NoError(t, pErr)
	assert.Equal(t, id, *unit)
	assert.Equal(t, 2, page)
	assert.Equal(t, 5, limit)
	assert.True(t, *approved)

	_, err = app.Test(httptest.NewRequest("GET", "/?unitId=nope&page=x", nil))
	require.NoError(t, err)
	assert.EqualError(t, unitErr, "Invalid unitId format")
	assert.EqualError(t, pErr, "Invalid page: must be an integer")
}

func TestParamID(t *testing.T) {
	app := fiber.New()
	app.Get("/:id", func(c *fiber.Ctx) error {
		if _, err := ParamID(c, "id"); err != nil {
			return c.Status(400).SendString(err.Error())
		}
		return c.SendStatus(200)
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	resp, err = app.Test(httptest.NewRequest("GET", "/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestMissing(t *testing.T) {
	assert.Equal(t, "b", Missing(map[string]bool{"a": true, "b": false}, "a", "b"))
	assert.Equal(t, "", Missing(map[string]bool{"a": true}, "a"))
}
