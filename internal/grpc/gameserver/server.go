package gameserver

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/Game2048RL/internal/experience"
	gameengine "github.com/mitchelldurbincs/Game2048RL/internal/game"
	"github.com/mitchelldurbincs/Game2048RL/internal/game/core"
	"github.com/mitchelldurbincs/Game2048RL/internal/storage"
)

const maxSampleSize = 10000

// errStoreDisabled is returned by RestoreGame when no snapshot store is configured.
var errStoreDisabled = errors.New("snapshot store is not configured")

// Server implements EnvironmentServiceServer on top of a GameManager.
type Server struct {
	gameManager *GameManager

	// Optional collaborators; nil disables them.
	store  storage.SnapshotStore
	buffer *experience.Buffer

	sampleMu  sync.Mutex
	sampleRng *rand.Rand
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithSnapshotStore writes a snapshot after every state change and enables RestoreGame.
func WithSnapshotStore(store storage.SnapshotStore) Option {
	return func(s *Server) { s.store = store }
}

// WithExperienceBuffer records every step as a transition.
func WithExperienceBuffer(buf *experience.Buffer) Option {
	return func(s *Server) { s.buffer = buf }
}

func NewServer(gameManager *GameManager, opts ...Option) *Server {
	s := &Server{
		gameManager: gameManager,
		sampleRng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ EnvironmentServiceServer = (*Server)(nil)

// CreateGame starts a game from an optional seed and optional 3x3 state.
func (s *Server) CreateGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var seed *int64
	if n, ok, err := optionalInt(req, "seed"); err != nil {
		return nil, toStatus(err)
	} else if ok {
		seed = &n
	}

	var state *core.Grid
	if v, ok := req.GetFields()["state"]; ok {
		g, err := parseGrid(v)
		if err != nil {
			return nil, toStatus(err)
		}
		state = &g
	}

	game, err := s.gameManager.CreateGame(seed, state)
	if err != nil {
		return nil, toStatus(err)
	}

	if err := game.lock(); err != nil {
		return nil, toStatus(err)
	}
	defer game.mu.Unlock()
	s.saveSnapshot(ctx, game.engine)
	return gameResponse(game.engine), nil
}

// Step applies one legal action, runs the terminal check and returns the new state.
func (s *Server) Step(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := requiredString(req, "game_id")
	if err != nil {
		return nil, toStatus(err)
	}
	actionValue, ok := req.GetFields()["action"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "action is required")
	}
	action, err := parseAction(actionValue)
	if err != nil {
		return nil, toStatus(err)
	}
	key, err := optionalString(req, "idempotency_key")
	if err != nil {
		return nil, toStatus(err)
	}

	game, err := s.gameManager.GetGame(gameID)
	if err != nil {
		return nil, toStatus(err)
	}

	if err := game.lock(); err != nil {
		return nil, toStatus(err)
	}
	defer game.mu.Unlock()

	if cached := game.idempotencyManager.Check(key); cached != nil {
		log.Debug().
			Str("game_id", gameID).
			Str("idempotency_key", key).
			Msg("Returning cached step response")
		return cached, nil
	}

	before := game.engine.State()
	if _, err := game.engine.Step(action); err != nil {
		return nil, toStatus(err)
	}
	done := game.engine.GameOver()
	game.touch()

	s.recordTransition(game.engine, before, action, done)
	s.saveSnapshot(ctx, game.engine)

	resp := gameResponse(game.engine)
	game.idempotencyManager.Store(key, resp)

	log.Debug().
		Str("game_id", gameID).
		Str("action", action.String()).
		Int("reward", game.engine.Reward()).
		Bool("done", done).
		Msg("Step applied")
	return resp, nil
}

func (s *Server) GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	game, err := s.lookup(req)
	if err != nil {
		return nil, err
	}

	if err := game.lock(); err != nil {
		return nil, toStatus(err)
	}
	defer game.mu.Unlock()
	game.touch()
	return gameResponse(game.engine), nil
}

// CopyGame registers an independent copy of a game under a new ID.
func (s *Server) CopyGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	source, err := s.lookup(req)
	if err != nil {
		return nil, err
	}

	if err := source.lock(); err != nil {
		return nil, toStatus(err)
	}
	clone := source.engine.Copy()
	source.touch()
	source.mu.Unlock()

	game, err := s.gameManager.AddGame(clone)
	if err != nil {
		return nil, toStatus(err)
	}

	if err := game.lock(); err != nil {
		return nil, toStatus(err)
	}
	defer game.mu.Unlock()
	s.saveSnapshot(ctx, game.engine)

	log.Info().
		Str("source_game_id", source.id).
		Str("game_id", game.id).
		Msg("Copied game")
	return gameResponse(game.engine), nil
}

// RestoreGame brings an evicted game back from the snapshot store. A game
// that is still live is returned as is.
func (s *Server) RestoreGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	gameID, err := requiredString(req, "game_id")
	if err != nil {
		return nil, toStatus(err)
	}

	// A game closed while we waited for its lock falls through to the store,
	// where its snapshot is already gone.
	if game, err := s.gameManager.GetGame(gameID); err == nil {
		if err := game.lock(); err == nil {
			defer game.mu.Unlock()
			game.touch()
			return gameResponse(game.engine), nil
		}
	}

	if s.store == nil {
		return nil, toStatus(errStoreDisabled)
	}
	snap, err := s.store.Load(ctx, gameID)
	if err != nil {
		return nil, toStatus(err)
	}

	engine, err := gameengine.RestoreEngine(snap, rand.New(rand.NewSource(s.gameManager.nextSeed())), log.Logger)
	if err != nil {
		return nil, status.Errorf(codes.DataLoss, "restore %s: %v", gameID, err)
	}
	game, err := s.gameManager.AddGame(engine)
	if err != nil {
		return nil, toStatus(err)
	}

	log.Info().Str("game_id", gameID).Int("moves", snap.Moves).Msg("Restored game from snapshot")

	if err := game.lock(); err != nil {
		return nil, toStatus(err)
	}
	defer game.mu.Unlock()
	return gameResponse(game.engine), nil
}

// CloseGame removes a game and its stored snapshot. The game is marked closed
// under its lock, so a request already holding a reference cannot step it or
// write its snapshot back afterwards.
func (s *Server) CloseGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	game, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	gameID := game.id

	if err := game.lock(); err != nil {
		return nil, toStatus(err)
	}
	defer game.mu.Unlock()

	game.closed = true
	s.gameManager.removeInstance(game)
	if s.store != nil {
		if err := s.store.Delete(ctx, gameID); err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Msg("Failed to delete snapshot")
		}
	}

	log.Info().Str("game_id", gameID).Msg("Closed game")
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"game_id": structpb.NewStringValue(gameID),
		"closed":  structpb.NewBoolValue(true),
	}}, nil
}

// SampleExperiences returns up to count recorded transitions chosen at random.
// With consume set it instead removes and returns the oldest count transitions.
func (s *Server) SampleExperiences(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.buffer == nil {
		return nil, status.Error(codes.FailedPrecondition, "experience collection is disabled")
	}
	count, ok, err := optionalInt(req, "count")
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok || count <= 0 || count > maxSampleSize {
		return nil, status.Errorf(codes.InvalidArgument, "count must be between 1 and %d", maxSampleSize)
	}
	consume, err := optionalBool(req, "consume")
	if err != nil {
		return nil, toStatus(err)
	}

	var sample []*experience.Transition
	if consume {
		sample = s.buffer.Get(int(count))
	} else {
		s.sampleMu.Lock()
		sample = s.buffer.Sample(int(count), s.sampleRng)
		s.sampleMu.Unlock()
	}

	values := make([]*structpb.Value, len(sample))
	for i, t := range sample {
		values[i] = transitionToValue(t)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"transitions":     structpb.NewListValue(&structpb.ListValue{Values: values}),
		"buffer_size":     structpb.NewNumberValue(float64(s.buffer.Size())),
		"buffer_capacity": structpb.NewNumberValue(float64(s.buffer.Capacity())),
	}}, nil
}

func (s *Server) lookup(req *structpb.Struct) (*gameInstance, error) {
	gameID, err := requiredString(req, "game_id")
	if err != nil {
		return nil, toStatus(err)
	}
	game, err := s.gameManager.GetGame(gameID)
	if err != nil {
		return nil, toStatus(err)
	}
	return game, nil
}

// saveSnapshot writes through to the store. Failures are logged; the live
// game stays authoritative. Must be called with the game's lock held.
func (s *Server) saveSnapshot(ctx context.Context, engine *gameengine.Engine) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, engine.Snapshot()); err != nil {
		log.Warn().Err(err).Str("game_id", engine.GameID()).Msg("Failed to save snapshot")
	}
}

// recordTransition adds the step to the experience buffer. Must be called
// with the game's lock held.
func (s *Server) recordTransition(engine *gameengine.Engine, before core.Grid, action core.Direction, done bool) {
	if s.buffer == nil {
		return
	}
	t, err := experience.NewTransition(engine.GameID(), before, action, engine.Reward(), engine.State(), done)
	if err == nil {
		err = s.buffer.Add(t)
	}
	if err != nil {
		log.Warn().Err(err).Str("game_id", engine.GameID()).Msg("Failed to record transition")
	}
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrGameNotFound), errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrServerAtCapacity):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, ErrGameExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, core.ErrInvalidDirection),
		errors.Is(err, core.ErrInvalidGrid):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, core.ErrActionUnavailable),
		errors.Is(err, core.ErrGameOver),
		errors.Is(err, errStoreDisabled):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
