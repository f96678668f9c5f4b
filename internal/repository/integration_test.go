//go:build integration

package repository_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ignatzorin/youth-governance-backend/internal/db"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/repository/common"
)

// newTestDB starts a disposable Postgres and applies the migrations.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("youth_portal"),
		tcpostgres.WithUsername("portal"),
		tcpostgres.WithPassword("portal"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	applied, err := db.RunMigrations(ctx, conn, "../../migrations")
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	again, err := db.RunMigrations(ctx, conn, "../../migrations")
	require.NoError(t, err)
	assert.Empty(t, again, "migrations are applied once")
	return conn
}

func createStaff(t *testing.T, users *repository.UserRepository) uuid.UUID {
	t.Helper()
	u := &models.User{
		Email:        "kagawad@example.ph",
		Username:     "kagawad",
		PasswordHash: "x",
		Role:         models.RoleStaff,
		FullName:     "Kagawad Cruz",
	}
	require.NoError(t, users.Create(context.Background(), u, nil))
	return u.ID
}

func importedPayload(t *testing.T) json.RawMessage {
	t.Helper()
	payload := models.YouthProfilePayload{
		Personal: models.PersonalInformation{
			FirstName: "Ana",
			LastName:  "Reyes",
			Sex:       "female",
			Birthdate: models.NewDate(time.Date(2004, 3, 1, 0, 0, 0, 0, time.UTC)),
		},
		Engagement: models.EngagementData{
			YouthClassification: models.ClassificationInSchool,
			Interests:           []string{"sports"},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func importOne(t *testing.T, profiles *repository.YouthProfileRepository, ref string) *models.PendingYouthProfile {
	t.Helper()
	ctx := context.Background()
	n, err := profiles.ImportPending(ctx, models.SourceImport, []repository.ImportRow{
		{ExternalRef: &ref, Payload: importedPayload(t)},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rows, _, err := profiles.ListPending(ctx, repository.PendingProfileFilter{Status: models.StatusPending, Limit: 10})
	require.NoError(t, err)
	for i := range rows {
		if rows[i].ExternalRef != nil && *rows[i].ExternalRef == ref {
			return &rows[i]
		}
	}
	t.Fatalf("imported row %s not listed", ref)
	return nil
}

func countRows(t *testing.T, conn *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

func TestYouthProfileRepository_ApproveIsAtomic(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(conn)
	profiles := repository.NewYouthProfileRepository(conn)
	staffID := createStaff(t, users)

	t.Run("failure rolls back every write", func(t *testing.T) {
		pending := importOne(t, profiles, "rollback-1")
		payload, err := pending.DecodePayload()
		require.NoError(t, err)

		ghost := uuid.New()
		audit := &models.ActivityLog{ActorID: &ghost, Action: models.ActionApprove, SubjectType: models.SubjectPendingProfile, SubjectID: pending.ID}
		_, err = profiles.Approve(ctx, pending.ID, staffID, payload, audit)
		require.Error(t, err, "the audit row references an unknown actor")

		reloaded, err := profiles.GetPending(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, reloaded.Status)
		assert.Nil(t, reloaded.YouthProfileID)
		assert.Zero(t, countRows(t, conn, "youth_profiles"))
		assert.Zero(t, countRows(t, conn, "personal_information"))
	})

	t.Run("concurrent approvals produce one record", func(t *testing.T) {
		pending := importOne(t, profiles, "race-1")
		payload, err := pending.DecodePayload()
		require.NoError(t, err)

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			ok     int
			stales int
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := profiles.Approve(ctx, pending.ID, staffID, payload, nil)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case assert.ErrorIs(t, err, common.ErrStaleStatus):
					stales++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, ok)
		assert.Equal(t, 3, stales)
		assert.Equal(t, 1, countRows(t, conn, "youth_profiles"))
		assert.Equal(t, 1, countRows(t, conn, "personal_information"))
		assert.Equal(t, 1, countRows(t, conn, "family_information"))
		assert.Equal(t, 1, countRows(t, conn, "engagement_data"))

		reloaded, err := profiles.GetPending(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, reloaded.Status)
		require.NotNil(t, reloaded.YouthProfileID)

		record, err := profiles.GetRecord(ctx, *reloaded.YouthProfileID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", record.Personal.FirstName)
		assert.Equal(t, []string{"sports"}, []string(record.Engagement.Interests))

		ids, err := profiles.ListUserIDsByInterest(ctx, "sports")
		require.NoError(t, err)
		assert.Empty(t, ids, "imported records have no account")
	})
}

func TestYouthProfileRepository_ImportSkipsKnownRefs(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	profiles := repository.NewYouthProfileRepository(conn)

	ref := "zap-77"
	rows := []repository.ImportRow{{ExternalRef: &ref, Payload: importedPayload(t)}}

	n, err := profiles.ImportPending(ctx, models.SourceZapier, rows, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = profiles.ImportPending(ctx, models.SourceZapier, rows, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	known, err := profiles.ExistingExternalRefs(ctx, []string{ref, "zap-78"})
	require.NoError(t, err)
	assert.Contains(t, known, ref)
	assert.NotContains(t, known, "zap-78")
}
