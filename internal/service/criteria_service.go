package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/grading"
	"github.com/noah-isme/nilai-go-api/internal/models"
	"github.com/noah-isme/nilai-go-api/internal/repository"
)

// ErrCriteriaSetNotFound indicates the requested criteria set does not exist.
var ErrCriteriaSetNotFound = errors.New("criteria set not found")

// ErrCriteriaNameTaken indicates another criteria set already uses the name.
var ErrCriteriaNameTaken = errors.New("criteria set name already in use")

// ErrDefaultCriteriaProtected indicates the seeded default cannot be removed.
var ErrDefaultCriteriaProtected = errors.New("default criteria set cannot be deleted")

// DefaultCriteriaSetName is the name of the seeded rubric.
const DefaultCriteriaSetName = "Standard Rubric"

// CriteriaService manages stored rubrics and resolves the criteria a grading
// run should score against.
type CriteriaService interface {
	List(ctx context.Context) ([]dto.CriteriaSetResponse, error)
	Get(ctx context.Context, id uint) (dto.CriteriaSetResponse, error)
	Create(ctx context.Context, payload dto.CriteriaSetCreateRequest, actor ActivityActor) (dto.CriteriaSetResponse, error)
	Update(ctx context.Context, id uint, payload dto.CriteriaSetUpdateRequest, actor ActivityActor) (dto.CriteriaSetResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
	ImportTOML(ctx context.Context, name string, data []byte, actor ActivityActor) (dto.CriteriaSetResponse, error)
	EnsureDefault(ctx context.Context) (models.CriteriaSet, error)
	ResolveCriteria(ctx context.Context, setID *uint) ([]grading.Criterion, error)
}

type criteriaService struct {
	repo      repository.CriteriaSetRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewCriteriaService constructs the criteria service.
func NewCriteriaService(repo repository.CriteriaSetRepository, validator *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) CriteriaService {
	return &criteriaService{
		repo:      repo,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "criteria_service").Logger(),
	}
}

func (s *criteriaService) List(ctx context.Context) ([]dto.CriteriaSetResponse, error) {
	sets, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewCriteriaSetResponseSlice(sets), nil
}

func (s *criteriaService) Get(ctx context.Context, id uint) (dto.CriteriaSetResponse, error) {
	set, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CriteriaSetResponse{}, ErrCriteriaSetNotFound
		}
		return dto.CriteriaSetResponse{}, err
	}

	return dto.NewCriteriaSetResponse(set), nil
}

func (s *criteriaService) Create(ctx context.Context, payload dto.CriteriaSetCreateRequest, actor ActivityActor) (dto.CriteriaSetResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CriteriaSetResponse{}, err
	}

	name := strings.TrimSpace(payload.Name)
	if err := s.ensureNameAvailable(ctx, name, 0); err != nil {
		return dto.CriteriaSetResponse{}, err
	}

	criteria := make([]grading.Criterion, 0, len(payload.Criteria))
	for _, entry := range payload.Criteria {
		criteria = append(criteria, entry.ToCriterion())
	}
	if err := grading.ValidateCriteria(criteria); err != nil {
		return dto.CriteriaSetResponse{}, err
	}

	encoded, err := json.Marshal(criteria)
	if err != nil {
		return dto.CriteriaSetResponse{}, fmt.Errorf("failed to encode criteria: %w", err)
	}

	set := models.CriteriaSet{
		Name:        name,
		Description: strings.TrimSpace(payload.Description),
		Criteria:    datatypes.JSON(encoded),
		CreatedBy:   actor.ID,
	}
	if err := s.repo.Create(ctx, &set); err != nil {
		return dto.CriteriaSetResponse{}, err
	}

	s.recordCriteriaActivity(ctx, actor, models.ActionCriteriaCreated, set)
	s.logger.Info().Uint("criteria_set_id", set.ID).Str("name", set.Name).Msg("criteria set created")

	return dto.NewCriteriaSetResponse(set), nil
}

func (s *criteriaService) Update(ctx context.Context, id uint, payload dto.CriteriaSetUpdateRequest, actor ActivityActor) (dto.CriteriaSetResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CriteriaSetResponse{}, err
	}

	set, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CriteriaSetResponse{}, ErrCriteriaSetNotFound
		}
		return dto.CriteriaSetResponse{}, err
	}

	if payload.Name != nil {
		name := strings.TrimSpace(*payload.Name)
		if name != set.Name {
			if err := s.ensureNameAvailable(ctx, name, set.ID); err != nil {
				return dto.CriteriaSetResponse{}, err
			}
			set.Name = name
		}
	}
	if payload.Description != nil {
		set.Description = strings.TrimSpace(*payload.Description)
	}
	if len(payload.Criteria) > 0 {
		criteria := make([]grading.Criterion, 0, len(payload.Criteria))
		for _, entry := range payload.Criteria {
			criteria = append(criteria, entry.ToCriterion())
		}
		if err := grading.ValidateCriteria(criteria); err != nil {
			return dto.CriteriaSetResponse{}, err
		}

		encoded, err := json.Marshal(criteria)
		if err != nil {
			return dto.CriteriaSetResponse{}, fmt.Errorf("failed to encode criteria: %w", err)
		}
		set.Criteria = datatypes.JSON(encoded)
	}

	if err := s.repo.Update(ctx, &set); err != nil {
		return dto.CriteriaSetResponse{}, err
	}

	s.recordCriteriaActivity(ctx, actor, models.ActionCriteriaUpdated, set)

	return dto.NewCriteriaSetResponse(set), nil
}

func (s *criteriaService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	set, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCriteriaSetNotFound
		}
		return err
	}

	if set.IsDefault {
		return ErrDefaultCriteriaProtected
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.recordCriteriaActivity(ctx, actor, models.ActionCriteriaDeleted, set)

	return nil
}

func (s *criteriaService) ImportTOML(ctx context.Context, name string, data []byte, actor ActivityActor) (dto.CriteriaSetResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return dto.CriteriaSetResponse{}, fmt.Errorf("criteria set name is required")
	}

	criteria, err := grading.ParseCriteriaTOML(data)
	if err != nil {
		return dto.CriteriaSetResponse{}, err
	}

	if err := s.ensureNameAvailable(ctx, name, 0); err != nil {
		return dto.CriteriaSetResponse{}, err
	}

	encoded, err := json.Marshal(criteria)
	if err != nil {
		return dto.CriteriaSetResponse{}, fmt.Errorf("failed to encode criteria: %w", err)
	}

	set := models.CriteriaSet{
		Name:      name,
		Criteria:  datatypes.JSON(encoded),
		CreatedBy: actor.ID,
	}
	if err := s.repo.Create(ctx, &set); err != nil {
		return dto.CriteriaSetResponse{}, err
	}

	s.recordCriteriaActivity(ctx, actor, models.ActionCriteriaImported, set)
	s.logger.Info().Uint("criteria_set_id", set.ID).Int("criteria_count", len(criteria)).Msg("criteria set imported")

	return dto.NewCriteriaSetResponse(set), nil
}

// EnsureDefault seeds the built-in rubric on first start so grading always
// has a fallback criteria set.
func (s *criteriaService) EnsureDefault(ctx context.Context) (models.CriteriaSet, error) {
	existing, err := s.repo.GetDefault(ctx)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CriteriaSet{}, err
	}

	encoded, err := json.Marshal(grading.DefaultCriteria())
	if err != nil {
		return models.CriteriaSet{}, fmt.Errorf("failed to encode default criteria: %w", err)
	}

	set := models.CriteriaSet{
		Name:        DefaultCriteriaSetName,
		Description: "Built-in rubric used when a batch does not name one.",
		Criteria:    datatypes.JSON(encoded),
		IsDefault:   true,
	}
	if err := s.repo.Create(ctx, &set); err != nil {
		return models.CriteriaSet{}, err
	}

	s.logger.Info().Uint("criteria_set_id", set.ID).Msg("default criteria set seeded")

	return set, nil
}

// ResolveCriteria loads the criteria for the given set, falling back to the
// default rubric when setID is nil.
func (s *criteriaService) ResolveCriteria(ctx context.Context, setID *uint) ([]grading.Criterion, error) {
	var (
		set models.CriteriaSet
		err error
	)
	if setID != nil {
		set, err = s.repo.GetByID(ctx, *setID)
	} else {
		set, err = s.repo.GetDefault(ctx)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCriteriaSetNotFound
		}
		return nil, err
	}

	var criteria []grading.Criterion
	if err := json.Unmarshal(set.Criteria, &criteria); err != nil {
		return nil, fmt.Errorf("failed to decode stored criteria: %w", err)
	}
	if err := grading.ValidateCriteria(criteria); err != nil {
		return nil, err
	}

	return criteria, nil
}

func (s *criteriaService) ensureNameAvailable(ctx context.Context, name string, selfID uint) error {
	existing, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if existing.ID == selfID {
		return nil
	}

	return ErrCriteriaNameTaken
}

func (s *criteriaService) recordCriteriaActivity(ctx context.Context, actor ActivityActor, action string, set models.CriteriaSet) {
	if s.activity == nil {
		return
	}

	setID := set.ID
	_, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: models.EntityCriteriaSet,
		EntityID:   &setID,
		Metadata:   map[string]interface{}{"name": set.Name},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record criteria activity")
	}
}
