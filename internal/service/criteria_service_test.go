package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/models"
)

type memoryCriteriaRepo struct {
	sets   map[uint]models.CriteriaSet
	nextID uint
}

func newMemoryCriteriaRepo() *memoryCriteriaRepo {
	return &memoryCriteriaRepo{sets: map[uint]models.CriteriaSet{}}
}

func (m *memoryCriteriaRepo) List(ctx context.Context) ([]models.CriteriaSet, error) {
	sets := make([]models.CriteriaSet, 0, len(m.sets))
	for _, set := range m.sets {
		sets = append(sets, set)
	}
	return sets, nil
}

func (m *memoryCriteriaRepo) GetByID(ctx context.Context, id uint) (models.CriteriaSet, error) {
	set, ok := m.sets[id]
	if !ok {
		return models.CriteriaSet{}, gorm.ErrRecordNotFound
	}
	return set, nil
}

func (m *memoryCriteriaRepo) GetByName(ctx context.Context, name string) (models.CriteriaSet, error) {
	for _, set := range m.sets {
		if set.Name == name {
			return set, nil
		}
	}
	return models.CriteriaSet{}, gorm.ErrRecordNotFound
}

func (m *memoryCriteriaRepo) GetDefault(ctx context.Context) (models.CriteriaSet, error) {
	for _, set := range m.sets {
		if set.IsDefault {
			return set, nil
		}
	}
	return models.CriteriaSet{}, gorm.ErrRecordNotFound
}

func (m *memoryCriteriaRepo) Create(ctx context.Context, set *models.CriteriaSet) error {
	m.nextID++
	set.ID = m.nextID
	m.sets[set.ID] = *set
	return nil
}

func (m *memoryCriteriaRepo) Update(ctx context.Context, set *models.CriteriaSet) error {
	m.sets[set.ID] = *set
	return nil
}

func (m *memoryCriteriaRepo) Delete(ctx context.Context, id uint) error {
	delete(m.sets, id)
	return nil
}

type recorderStub struct {
	entries []ActivityEntry
}

func (r *recorderStub) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{}, nil
}

func newCriteriaService(repo *memoryCriteriaRepo, recorder *recorderStub) CriteriaService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewCriteriaService(repo, validate, recorder, testLogger())
}

func sampleCreateRequest() dto.CriteriaSetCreateRequest {
	return dto.CriteriaSetCreateRequest{
		Name:        "Strict Rubric",
		Description: "Weighted toward correctness",
		Criteria: []dto.CriterionPayload{
			{Name: "Code Correctness", MaxPoints: 60, Rubric: []string{"Zero execution errors"}},
			{Name: "Documentation & Comments", MaxPoints: 40},
		},
	}
}

func TestCriteriaServiceCreateAndGet(t *testing.T) {
	repo := newMemoryCriteriaRepo()
	recorder := &recorderStub{}
	svc := newCriteriaService(repo, recorder)

	created, err := svc.Create(context.Background(), sampleCreateRequest(), ActivityActor{ID: 4, Role: "instructor"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.InDelta(t, 100, created.MaxPossible, 0.001)
	require.Len(t, created.Criteria, 2)

	fetched, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "Strict Rubric", fetched.Name)
	require.Equal(t, "Code Correctness", fetched.Criteria[0].Name)

	require.Len(t, recorder.entries, 1)
	require.Equal(t, models.ActionCriteriaCreated, recorder.entries[0].Action)
}

func TestCriteriaServiceCreateRejectsDuplicateName(t *testing.T) {
	repo := newMemoryCriteriaRepo()
	svc := newCriteriaService(repo, &recorderStub{})

	_, err := svc.Create(context.Background(), sampleCreateRequest(), ActivityActor{ID: 4, Role: "instructor"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), sampleCreateRequest(), ActivityActor{ID: 4, Role: "instructor"})
	require.ErrorIs(t, err, ErrCriteriaNameTaken)
}

func TestCriteriaServiceCreateValidatesPayload(t *testing.T) {
	repo := newMemoryCriteriaRepo()
	svc := newCriteriaService(repo, &recorderStub{})

	payload := sampleCreateRequest()
	payload.Criteria = nil

	_, err := svc.Create(context.Background(), payload, ActivityActor{ID: 4, Role: "instructor"})
	require.Error(t, err)

	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestCriteriaServiceUpdateAppliesPartialChanges(t *testing.T) {
	repo := newMemoryCriteriaRepo()
	svc := newCriteriaService(repo, &recorderStub{})

	created, err := svc.Create(context.Background(), sampleCreateRequest(), ActivityActor{ID: 4, Role: "instructor"})
	require.NoError(t, err)

	description := "Tightened for finals"
	updated, err := svc.Update(context.Background(), created.ID, dto.CriteriaSetUpdateRequest{Description: &description}, ActivityActor{ID: 4, Role: "instructor"})
	require.NoError(t, err)
	require.Equal(t, "Tightened for finals", updated.Description)
	require.Equal(t, "Strict Rubric", updated.Name)
	require.Len(t, updated.Criteria, 2)
}

func TestCriteriaServiceDeleteProtectsDefault(t *testing.T) {
	repo := newMemoryCriteriaRepo()
	svc := newCriteriaService(repo, &recorderStub{})

	seeded, err := svc.EnsureDefault(context.Background())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), seeded.ID, ActivityActor{ID: 1, Role: "admin"})
	require.ErrorIs(t, err, ErrDefaultCriteriaProtected)
}

func TestCriteriaServiceDeleteMissingSet(t *testing.T) {
	repo := newMemoryCriteriaRepo()
	svc := newCriteriaService(repo, &recorderStub{})

	err := svc.Delete(context.Background(), 99, ActivityActor{ID: 1, Role: "admin"})
	require.ErrorIs(t, err, ErrCriteriaSetNotFound)
}

func TestCriteriaServiceImportTOML(t *testing.T) {
	repo := newMemoryCriteriaRepo()
	recorder := &recorderStub{}
	svc := newCriteriaService(repo, recorder)

	doc := []byte(`
[[criteria]]
name = "Code Correctness"
max_points = 70.0
rubric = ["Zero execution errors"]

[[criteria]]
name = "Completeness"
max_points = 30.0
`)

	imported, err := svc.ImportTOML(context.Background(), "Imported Rubric", doc, ActivityActor{ID: 2, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, "Imported Rubric", imported.Name)
	require.Len(t, imported.Criteria, 2)
	require.InDelta(t, 100, imported.MaxPossible, 0.001)

	require.Len(t, recorder.entries, 1)
	require.Equal(t, models.ActionCriteriaImported, recorder.entries[0].Action)
}

func TestCriteriaServiceImportTOMLRejectsMalformedDocument(t *testing.T) {
	repo := newMemoryCriteriaRepo()
	svc := newCriteriaService(repo, &recorderStub{})

	_, err := svc.ImportTOML(context.Background(), "Broken", []byte("not toml at all ==="), ActivityActor{ID: 2, Role: "admin"})
	require.Error(t, err)
}

func TestCriteriaServiceEnsureDefaultSeedsOnce(t *testing.T) {
	repo := newMemoryCriteriaRepo()
	svc := newCriteriaService(repo, &recorderStub{})

	first, err := svc.EnsureDefault(context.Background())
	require.NoError(t, err)
	require.True(t, first.IsDefault)
	require.Equal(t, DefaultCriteriaSetName, first.Name)

	second, err := svc.EnsureDefault(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.sets, 1)
}

func TestCriteriaServiceResolveCriteria(t *testing.T) {
	repo := newMemoryCriteriaRepo()
	svc := newCriteriaService(repo, &recorderStub{})

	_, err := svc.EnsureDefault(context.Background())
	require.NoError(t, err)

	byDefault, err := svc.ResolveCriteria(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, byDefault, 5)
	require.Equal(t, "Code Correctness", byDefault[0].Name)

	created, err := svc.Create(context.Background(), sampleCreateRequest(), ActivityActor{ID: 4, Role: "instructor"})
	require.NoError(t, err)

	explicit, err := svc.ResolveCriteria(context.Background(), &created.ID)
	require.NoError(t, err)
	require.Len(t, explicit, 2)
	require.InDelta(t, 60, explicit[0].MaxPoints, 0.001)

	missing := uint(404)
	_, err = svc.ResolveCriteria(context.Background(), &missing)
	require.ErrorIs(t, err, ErrCriteriaSetNotFound)
}
