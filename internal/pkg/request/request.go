package request

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ParamID parses a path parameter as a UUID.
func ParamID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := c.Params(name)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("Invalid %s format", name)
	}
	return id, nil
}

// QueryID parses an optional UUID query parameter. Absent yields nil.
func QueryID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("Invalid %s format", name)
	}
	return &id, nil
}

// QueryInt parses an optional integer query parameter. Absent yields 0.
func QueryInt(c *fiber.Ctx, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("Invalid %s: must be an integer", name)
	}
	return n, nil
}

// QueryBool parses an optional boolean query parameter. Absent yields nil.
func QueryBool(c *fiber.Ctx, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("Invalid %s: must be true or false", name)
	}
	return &b, nil
}

// Page reads page and limit; normalization happens in the database scope.
func Page(c *fiber.Ctx) (page, limit int, err error) {
	if page, err = QueryInt(c, "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = QueryInt(c, "limit"); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

// Missing returns the first name whose value is empty, for "Missing required field" responses.
func Missing(fields map[string]bool, order ...string) string {
	for _, name := range order {
		if !fields[name] {
			return name
		}
	}
	return ""
}

// ParseUUIDField parses a body field that must hold a UUID.
func ParseUUIDField(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("Invalid %s format", name)
	}
	return id, nil
}

// ParseOptionalUUIDField parses an optional UUID body field.
func ParseOptionalUUIDField(name string, raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := ParseUUIDField(name, *raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
