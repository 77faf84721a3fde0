package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"coino/config"
	"coino/events"
	"coino/infrastructure/observability"
	"coino/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// roomService implements the RoomService interface
type roomService struct {
	uowFactory UnitOfWorkFactory
	config     *config.Config
	metrics    *observability.MetricsProvider
}

// NewRoomService creates a new room service
func NewRoomService(uowFactory UnitOfWorkFactory, cfg *config.Config, metrics *observability.MetricsProvider) RoomService {
	return &roomService{
		uowFactory: uowFactory,
		config:     cfg,
		metrics:    metrics,
	}
}

// CreateRoom creates a private room owned by creatorID
func (s *roomService) CreateRoom(ctx context.Context, creatorID, name string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if creatorID == "" {
		return nil, validationError("creator is required")
	}
	if name == "" || len(name) > 64 {
		return nil, validationError("room name must be 1 to 64 characters")
	}

	room := &models.Room{
		ID:        uuid.NewString(),
		CreatorID: creatorID,
		Name:      name,
	}

	err := inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
		account, err := uow.AccountRepository().GetByUserID(ctx, creatorID)
		if err != nil {
			return err
		}
		if account == nil {
			return fmt.Errorf("user %s: %w", creatorID, ErrAccountNotFound)
		}
		return uow.RoomRepository().Create(ctx, room)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	log.WithFields(log.Fields{
		"roomID":    room.ID,
		"creatorID": creatorID,
	}).Info("Room created")

	return room, nil
}

// JoinRoom adds a participant to a room
func (s *roomService) JoinRoom(ctx context.Context, roomID, userID string) (*models.Room, error) {
	var room *models.Room
	err := inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		room, err = uow.RoomRepository().GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return fmt.Errorf("room %s: %w", roomID, ErrRoomNotFound)
		}

		account, err := uow.AccountRepository().GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return fmt.Errorf("user %s: %w", userID, ErrAccountNotFound)
		}

		if slices.Contains(room.Participants, userID) {
			return nil
		}
		if err := uow.RoomRepository().AddParticipant(ctx, roomID, userID); err != nil {
			return err
		}
		room.Participants = append(room.Participants, userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// StartRoom lets the room creator open the room for rounds
func (s *roomService) StartRoom(ctx context.Context, roomID, userID string) (*models.Room, error) {
	var room *models.Room
	err := inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		room, err = uow.RoomRepository().GetByIDForUpdate(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return fmt.Errorf("room %s: %w", roomID, ErrRoomNotFound)
		}
		if room.CreatorID != userID {
			return fmt.Errorf("room %s: %w", roomID, ErrNotRoomCreator)
		}
		if room.Started {
			return nil
		}

		if err := uow.RoomRepository().MarkStarted(ctx, roomID); err != nil {
			return err
		}
		room.Started = true

		uow.EventBus().Publish(events.RoomStartedEvent{RoomID: roomID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoom returns a room with its participants
func (s *roomService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room *models.Room
	err := inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		room, err = uow.RoomRepository().GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room == nil {
			return fmt.Errorf("room %s: %w", roomID, ErrRoomNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// StartRoomRound opens a round from the room's waiting bets once the room is
// started, has no active round and enough distinct bettors are waiting. The
// room row lock serializes concurrent callers.
func (s *roomService) StartRoomRound(ctx context.Context, scope models.Scope) (*models.Round, error) {
	if !scope.IsRoom() {
		return nil, validationError("scope %s is not a room", scope)
	}

	var round *models.Round
	err := withRetry(ctx, "room.start_round", s.config.MaxRetries, func() { s.metrics.RecordRetry("room.start_round") }, func() error {
		round = nil
		return inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
			room, err := uow.RoomRepository().GetByIDForUpdate(ctx, scope.RoomID())
			if err != nil {
				return err
			}
			if room == nil {
				return fmt.Errorf("room %s: %w", scope.RoomID(), ErrRoomNotFound)
			}
			if !room.Started {
				return nil
			}

			active, err := uow.RoundRepository().FindActiveRound(ctx, scope)
			if err != nil {
				return err
			}
			if active != nil {
				return nil
			}

			waiting, err := uow.BetRepository().CountWaitingParticipants(ctx, scope)
			if err != nil {
				return err
			}
			if waiting < s.config.MinRoomParticipants {
				return nil
			}

			created, err := uow.RoundRepository().CreateRound(ctx, scope, 0)
			if err != nil {
				return err
			}

			count, total, err := uow.BetRepository().AttachWaitingToRound(ctx, scope, created.ID)
			if err != nil {
				return err
			}

			created, err = uow.RoundRepository().IncrementAggregates(ctx, created.ID, count, total)
			if err != nil {
				return err
			}

			uow.EventBus().Publish(events.RoundOpenedEvent{Round: *created})
			round = created
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if round != nil {
		s.metrics.RecordRoundOpened(scope)
		log.WithFields(log.Fields{
			"roundID":  round.ID,
			"scope":    scope,
			"betCount": round.BetCount,
		}).Info("Room round opened")
	}

	return round, nil
}
