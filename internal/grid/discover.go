package grid

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Fallbacks when introspection finds nothing; these match the schema as last
// observed in production.
const (
	fallbackPlayerType = "GamePlayerStateValorant"
	fallbackInvField   = "inventory"
)

const introspectTypeFields = `
query IntrospectType($name: String!) {
  __type(name: $name) {
    name
    fields {
      name
      type { kind name ofType { kind name ofType { kind name ofType { kind name }}}}
    }
  }
}
`

const introspectSchemaTypeNames = `
query IntrospectSchemaTypeNames {
  __schema {
    types { name }
  }
}
`

type typeRef struct {
	Kind   string   `json:"kind"`
	Name   string   `json:"name"`
	OfType *typeRef `json:"ofType"`
}

type introspectTypeData struct {
	Type *struct {
		Name   string `json:"name"`
		Fields []struct {
			Name string  `json:"name"`
			Type typeRef `json:"type"`
		} `json:"fields"`
	} `json:"__type"`
}

type introspectSchemaData struct {
	Schema struct {
		Types []struct {
			Name string `json:"name"`
		} `json:"types"`
	} `json:"__schema"`
}

// unwrapNamedType walks NON_NULL/LIST wrappers down to the named type.
func unwrapNamedType(t *typeRef) string {
	for i := 0; t != nil && i < 10; i++ {
		if t.Name != "" {
			return t.Name
		}
		t = t.OfType
	}
	return ""
}

// DiscoverInventoryField finds the player state type carrying a PlayerInventory
// field and builds the series-state query around it. Called once before the
// poller starts; on total failure it falls back to the last known schema shape
// so a broken introspection endpoint never blocks startup.
func (c *Client) DiscoverInventoryField(ctx context.Context) {
	playerType, invField, ok := c.findInventoryField(ctx)
	if !ok {
		c.logger.Warn().
			Str("player_type", fallbackPlayerType).
			Str("inventory_field", fallbackInvField).
			Msg("inventory field discovery failed, using fallback schema shape")
		playerType, invField = fallbackPlayerType, fallbackInvField
	} else {
		c.logger.Info().
			Str("player_type", playerType).
			Str("inventory_field", invField).
			Msg("discovered inventory field")
	}

	c.playerType = playerType
	c.invField = invField
	c.query = buildSeriesStateQuery(playerType, invField)
}

func (c *Client) findInventoryField(ctx context.Context) (string, string, bool) {
	// The known player type first; introspecting one type is cheap.
	if field, ok := c.inventoryFieldOn(ctx, fallbackPlayerType); ok {
		return fallbackPlayerType, field, true
	}

	// Otherwise scan every type that looks like a Valorant player state.
	var schema introspectSchemaData
	if err := c.runGQL(ctx, seriesStateURL, introspectSchemaTypeNames, "IntrospectSchemaTypeNames", nil, &schema); err != nil {
		c.logger.Warn().Err(err).Msg("schema type listing failed")
		return "", "", false
	}

	var candidates []string
	for _, t := range schema.Schema.Types {
		if strings.Contains(t.Name, "Player") && strings.Contains(t.Name, "Valorant") {
			candidates = append(candidates, t.Name)
		}
	}

	var (
		mu         sync.Mutex
		foundType  string
		foundField string
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, name := range candidates {
		g.Go(func() error {
			if field, ok := c.inventoryFieldOn(gCtx, name); ok {
				mu.Lock()
				if foundType == "" {
					foundType, foundField = name, field
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // scans never fail the group, misses are just skipped

	return foundType, foundField, foundType != ""
}

func (c *Client) inventoryFieldOn(ctx context.Context, typeName string) (string, bool) {
	var data introspectTypeData
	err := c.runGQL(ctx, seriesStateURL, introspectTypeFields, "IntrospectType", map[string]any{"name": typeName}, &data)
	if err != nil || data.Type == nil {
		return "", false
	}
	for _, f := range data.Type.Fields {
		if unwrapNamedType(&f.Type) == "PlayerInventory" {
			return f.Name, true
		}
	}
	return "", false
}
