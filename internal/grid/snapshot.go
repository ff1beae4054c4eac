package grid

import (
	"context"
	"fmt"
	"strings"
	"time"
	"valorant-scout/internal/constants"
	"valorant-scout/internal/domain"
)

// buildSeriesStateQuery assembles the live-state query around the discovered
// player type. The inventory field is aliased to "inv" so decoding stays static
// no matter what the schema calls it.
func buildSeriesStateQuery(playerType, invField string) string {
	return fmt.Sprintf(`
query MidRoundState($seriesId: ID!) {
  seriesState(id: $seriesId) {
    id
    games {
      id
      teams {
        __typename
        ... on GameTeamStateValorant {
          id
          name
          side
          players {
            __typename
            ... on %s {
              id
              name
              alive
              participationStatus
              currentHealth
              maxHealth
              currentArmor
              position { x y }
              character { name }
              inv: %s {
                items {
                  id
                  name
                  quantity
                  equipped
                  stashed
                }
              }
            }
          }
        }
      }
    }
  }
}
`, playerType, invField)
}

type seriesStateData struct {
	SeriesState *seriesState `json:"seriesState"`
}

type seriesState struct {
	ID    string      `json:"id"`
	Games []gameState `json:"games"`
}

type gameState struct {
	ID    string      `json:"id"`
	Teams []teamState `json:"teams"`
}

type teamState struct {
	Typename string        `json:"__typename"`
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Side     string        `json:"side"`
	Players  []playerState `json:"players"`
}

type playerState struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Alive         bool       `json:"alive"`
	CurrentHealth *float64   `json:"currentHealth"`
	MaxHealth     *float64   `json:"maxHealth"`
	CurrentArmor  *float64   `json:"currentArmor"`
	Position      *struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	} `json:"position"`
	Character *struct {
		Name string `json:"name"`
	} `json:"character"`
	Inv *inventory `json:"inv"`
}

type inventory struct {
	Items []itemStack `json:"items"`
}

type itemStack struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Equipped bool   `json:"equipped"`
	Stashed  int    `json:"stashed"`
}

// FetchSnapshot polls the series state once and normalizes the current game
// into a domain snapshot. A nil snapshot with nil error means "no data this
// tick": the series is not live or no game has players yet.
func (c *Client) FetchSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	if c.query == "" {
		c.DiscoverInventoryField(ctx)
	}

	var data seriesStateData
	err := c.runGQL(ctx, seriesStateURL, c.query, "MidRoundState", map[string]any{"seriesId": c.seriesID}, &data)
	if err != nil {
		return nil, fmt.Errorf("series state fetch failed: %w", err)
	}
	if data.SeriesState == nil {
		return nil, nil
	}

	// The last game with any players is the one currently being played.
	var game *gameState
	for i := range data.SeriesState.Games {
		g := &data.SeriesState.Games[i]
		if countPlayers(g) > 0 {
			game = g
		}
	}
	if game == nil {
		return nil, nil
	}

	bounds, haveBounds := computeGameBounds(game)

	snap := &domain.Snapshot{
		SeriesID:  data.SeriesState.ID,
		GameID:    game.ID,
		Timestamp: time.Now(),
		Players:   make(map[string]domain.PlayerState),
	}

	for _, t := range game.Teams {
		if t.Typename != "GameTeamStateValorant" {
			continue
		}
		for _, p := range t.Players {
			ps := buildPlayer(p, t, bounds, haveBounds)
			key := ps.ID
			if key == "" {
				key = ps.Name
			}
			if key == "" {
				continue
			}
			snap.Players[key] = ps
		}
	}

	if len(snap.Players) == 0 {
		return nil, nil
	}
	return snap, nil
}

func countPlayers(g *gameState) int {
	n := 0
	for _, t := range g.Teams {
		if t.Typename == "GameTeamStateValorant" {
			n += len(t.Players)
		}
	}
	return n
}

func buildPlayer(p playerState, t teamState, bounds gameBounds, haveBounds bool) domain.PlayerState {
	var hp, maxHP float64
	hpKnown := p.CurrentHealth != nil && p.MaxHealth != nil
	if hpKnown {
		hp, maxHP = *p.CurrentHealth, *p.MaxHealth
	}

	var armor float64
	armorKnown := p.CurrentArmor != nil
	if armorKnown {
		armor = *p.CurrentArmor
	}

	agent := ""
	if p.Character != nil {
		agent = p.Character.Name
	}

	pos := domain.UnknownPosition()
	if p.Position != nil && p.Position.X != nil && p.Position.Y != nil {
		pos = regionLabels(*p.Position.X, *p.Position.Y, bounds, haveBounds)
	}

	return domain.PlayerState{
		ID:       p.ID,
		Name:     p.Name,
		TeamName: t.Name,
		Side:     domain.Side(strings.ToLower(t.Side)),
		Agent:    agent,
		Alive:    p.Alive,
		Health:   domain.HealthBucketFor(hp, maxHP, hpKnown),
		Armor:    domain.ArmorBucketFor(armor, armorKnown),
		Weapon:   extractWeapon(p.Inv),
		Position: pos,
	}
}

type gameBounds struct {
	minX, maxX, minY, maxY float64
}

// computeGameBounds finds the min/max coordinates across every player in the
// game. Degenerate spans are widened so binning never divides by zero.
func computeGameBounds(g *gameState) (gameBounds, bool) {
	var b gameBounds
	found := false
	for _, t := range g.Teams {
		if t.Typename != "GameTeamStateValorant" {
			continue
		}
		for _, p := range t.Players {
			if p.Position == nil || p.Position.X == nil || p.Position.Y == nil {
				continue
			}
			x, y := *p.Position.X, *p.Position.Y
			if !found {
				b = gameBounds{minX: x, maxX: x, minY: y, maxY: y}
				found = true
				continue
			}
			if x < b.minX {
				b.minX = x
			}
			if x > b.maxX {
				b.maxX = x
			}
			if y < b.minY {
				b.minY = y
			}
			if y > b.maxY {
				b.maxY = y
			}
		}
	}
	if !found {
		return b, false
	}
	if b.maxX-b.minX < 1e-6 {
		b.maxX = b.minX + 1.0
	}
	if b.maxY-b.minY < 1e-6 {
		b.maxY = b.minY + 1.0
	}
	return b, true
}

func binIndex(v, vmin, vmax float64, n int) int {
	span := vmax - vmin
	r := 0.0
	if span > 1e-12 {
		r = (v - vmin) / span
	}
	if r < 0 {
		r = 0
	}
	if r > 0.999999 {
		r = 0.999999
	}
	return int(r * float64(n))
}

// regionLabels bins a coordinate pair into the 8x8 grid and a compass quadrant
// relative to the bounds midpoint.
func regionLabels(x, y float64, b gameBounds, haveBounds bool) domain.Position {
	if !haveBounds {
		return domain.UnknownPosition()
	}

	n := constants.RegionGridSize
	cx := binIndex(x, b.minX, b.maxX, n)
	cy := binIndex(y, b.minY, b.maxY, n)

	mx := (b.minX + b.maxX) / 2.0
	my := (b.minY + b.maxY) / 2.0
	east := x >= mx
	north := y >= my

	quad := "SW"
	switch {
	case north && east:
		quad = "NE"
	case north:
		quad = "NW"
	case east:
		quad = "SE"
	}

	return domain.Position{
		X:        x,
		Y:        y,
		Known:    true,
		RegionRC: fmt.Sprintf("R%dC%d", cy+1, cx+1),
		Quadrant: quad,
	}
}

// extractWeapon picks the player's current weapon from the inventory: the
// equipped item with the highest quantity, falling back to the first named item.
func extractWeapon(inv *inventory) string {
	if inv == nil || len(inv.Items) == 0 {
		return ""
	}

	fallback := ""
	best := ""
	bestQty := -1
	for _, it := range inv.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		if fallback == "" {
			fallback = name
		}
		if it.Equipped && it.Quantity > bestQty {
			best, bestQty = name, it.Quantity
		}
	}
	if best != "" {
		return best
	}
	return fallback
}
