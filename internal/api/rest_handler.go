package api

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/criteria/internal/config"
	"github.com/fluxbase-eu/criteria/internal/criteria"
	"github.com/fluxbase-eu/criteria/internal/resource"
	"github.com/fluxbase-eu/criteria/internal/store"
)

// RestHandler serves list queries over registered resources.
type RestHandler struct {
	repo      *store.Repository
	resources *resource.Registry
	cfg       config.APIConfig
}

// NewRestHandler creates a new REST handler
func NewRestHandler(repo *store.Repository, resources *resource.Registry, cfg config.APIConfig) *RestHandler {
	return &RestHandler{
		repo:      repo,
		resources: resources,
		cfg:       cfg,
	}
}

// RegisterRoutes mounts the resource listing endpoint.
func (h *RestHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/:resource", h.ListResource)
}

// ListResource returns records of one resource with filter, order,
// fields and limit applied.
// GET /api/v1/:resource
func (h *RestHandler) ListResource(c fiber.Ctx) error {
	name := c.Params("resource")
	res, ok := h.resources.Get(name)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown resource",
		})
	}

	params, err := ParseListParams(
		c.Query("filter"),
		c.Query("order"),
		c.Query("fields"),
		c.Query("limit"),
		h.cfg,
	)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	records, err := h.repo.List(c.RequestCtx(), res.Model, params)
	if err != nil {
		var unknown *criteria.UnknownFieldError
		if errors.As(err, &unknown) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": unknown.Error(),
			})
		}
		log.Error().Err(err).Str("resource", name).Msg("list query failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list records",
		})
	}

	data := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		data = append(data, res.Serialize(rec, params.Fields))
	}
	return c.JSON(fiber.Map{"data": data})
}

// ParseListParams decodes the list query parameters into a parameter
// bag. Malformed filter or order expressions are rejected here, before
// any compilation happens.
func ParseListParams(filter, order, fields, limit string, cfg config.APIConfig) (criteria.Params, error) {
	var p criteria.Params

	if filter != "" {
		node, err := criteria.ParseFilter([]byte(filter))
		if err != nil {
			return p, errors.New("invalid filter expression: " + err.Error())
		}
		p.Filter = node
	}

	if order != "" {
		entries, err := criteria.ParseOrder([]byte(order))
		if err != nil {
			return p, errors.New("invalid order expression: " + err.Error())
		}
		p.Order = entries
	}

	if fields != "" {
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				p.Fields = append(p.Fields, f)
			}
		}
	}

	n := cfg.DefaultPageSize
	if limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed < 0 {
			return p, errors.New("invalid limit")
		}
		n = parsed
	}
	if cfg.MaxPageSize > 0 && n > cfg.MaxPageSize {
		n = cfg.MaxPageSize
	}
	if n > 0 {
		p.Limit = &n
	}
	return p, nil
}
