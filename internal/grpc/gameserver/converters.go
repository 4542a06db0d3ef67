package gameserver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	gameengine "github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/states"
)

// errInvalidRequest marks malformed request fields.
var errInvalidRequest = errors.New("invalid request")

// requiredString returns a non-empty string field of req.
func requiredString(req *structpb.Struct, field string) (string, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", errInvalidRequest, field)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || s.StringValue == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", errInvalidRequest, field)
	}
	return s.StringValue, nil
}

// optionalString returns a string field of req, or "" when absent.
func optionalString(req *structpb.Struct, field string) (string, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return "", nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", errInvalidRequest, field)
	}
	return s.StringValue, nil
}

// optionalInt returns an integral number field of req; ok is false when absent.
func optionalInt(req *structpb.Struct, field string) (n int64, ok bool, err error) {
	v, present := req.GetFields()[field]
	if !present {
		return 0, false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return 0, false, nil
	}
	num, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, false, fmt.Errorf("%w: %s must be a number", errInvalidRequest, field)
	}
	f := num.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false, fmt.Errorf("%w: %s must be an integer", errInvalidRequest, field)
	}
	return int64(f), true, nil
}

// optionalBool returns a bool field of req, or false when absent.
func optionalBool(req *structpb.Struct, field string) (bool, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return false, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return false, nil
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	default:
		return false, fmt.Errorf("%w: %s must be a bool", errInvalidRequest, field)
	}
}

// parseAction accepts a direction name or its index 0-3.
func parseAction(v *structpb.Value) (core.Direction, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return core.ParseDirection(kind.StringValue)
	case *structpb.Value_NumberValue:
		f := kind.NumberValue
		d := core.Direction(int(f))
		if f != math.Trunc(f) || !d.Valid() {
			return 0, fmt.Errorf("%w: %v", core.ErrInvalidDirection, f)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("%w: action must be a name or an index", errInvalidRequest)
	}
}

// parseGrid converts a 3x3 list of exponents into a grid.
func parseGrid(v *structpb.Value) (core.Grid, error) {
	list := v.GetListValue()
	if list == nil {
		return core.Grid{}, fmt.Errorf("%w: state must be a list of rows", core.ErrInvalidGrid)
	}

	rows := make([][]int, len(list.GetValues()))
	for r, rowValue := range list.GetValues() {
		row := rowValue.GetListValue()
		if row == nil {
			return core.Grid{}, fmt.Errorf("%w: row %d is not a list", core.ErrInvalidGrid, r)
		}
		rows[r] = make([]int, len(row.GetValues()))
		for c, cell := range row.GetValues() {
			num, ok := cell.GetKind().(*structpb.Value_NumberValue)
			if !ok || num.NumberValue != math.Trunc(num.NumberValue) {
				return core.Grid{}, fmt.Errorf("%w: cell (%d,%d) must be an integer", core.ErrInvalidGrid, r, c)
			}
			rows[r][c] = int(num.NumberValue)
		}
	}
	return core.GridFromRows(rows)
}

func gridToList(g core.Grid) *structpb.ListValue {
	rows := make([]*structpb.Value, core.Size)
	for r := 0; r < core.Size; r++ {
		cells := make([]*structpb.Value, core.Size)
		for c := 0; c < core.Size; c++ {
			cells[c] = structpb.NewNumberValue(float64(g[r][c]))
		}
		rows[r] = structpb.NewListValue(&structpb.ListValue{Values: cells})
	}
	return &structpb.ListValue{Values: rows}
}

func directionsToList(ds []core.Direction) *structpb.ListValue {
	values := make([]*structpb.Value, len(ds))
	for i, d := range ds {
		values[i] = structpb.NewStringValue(d.String())
	}
	return &structpb.ListValue{Values: values}
}

// gameResponse renders a game as a response. Must be called with the game's lock held.
func gameResponse(engine *gameengine.Engine) *structpb.Struct {
	snap := engine.Snapshot()
	return snapshotResponse(snap, engine.AvailableActions())
}

func snapshotResponse(snap gameengine.Snapshot, available []core.Direction) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"game_id":           structpb.NewStringValue(snap.GameID),
		"state":             structpb.NewListValue(gridToList(snap.State)),
		"reward":            structpb.NewNumberValue(float64(snap.Reward)),
		"moves":             structpb.NewNumberValue(float64(snap.Moves)),
		"phase":             structpb.NewStringValue(snap.Phase),
		"done":              structpb.NewBoolValue(snap.Phase == states.PhaseTerminal.String()),
		"available_actions": structpb.NewListValue(directionsToList(available)),
		"updated_at":        structpb.NewStringValue(snap.UpdatedAt.Format(time.RFC3339Nano)),
	}}
}

func transitionToValue(t *experience.Transition) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"id":        structpb.NewStringValue(t.ID),
		"game_id":   structpb.NewStringValue(t.GameID),
		"state":     structpb.NewListValue(gridToList(t.State)),
		"state_key": structpb.NewNumberValue(float64(t.StateKey)),
		"action":    structpb.NewStringValue(t.Action.String()),
		"reward":    structpb.NewNumberValue(float64(t.Reward)),
		"next":      structpb.NewListValue(gridToList(t.Next)),
		"next_key":  structpb.NewNumberValue(float64(t.NextKey)),
		"done":      structpb.NewBoolValue(t.Done),
	}})
}
