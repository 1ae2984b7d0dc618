package calculation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/repository"
	"github.com/nkiryanov/calcboard/internal/repository/memory"
	"github.com/nkiryanov/calcboard/internal/repository/postgres"
	"github.com/nkiryanov/calcboard/internal/testutil"
)

func decimals(values ...string) []decimal.Decimal {
	res := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		res = append(res, decimal.RequireFromString(v))
	}
	return res
}

func TestCompute(t *testing.T) {
	tests := []struct {
		typ    models.CalculationType
		inputs []string
		want   string
	}{
		{models.CalculationAddition, []string{"1", "2", "3"}, "6"},
		{models.CalculationAddition, []string{"0.1", "0.2"}, "0.3"},
		{models.CalculationSubtraction, []string{"10", "5", "2.5"}, "2.5"},
		{models.CalculationMultiplication, []string{"2", "3", "-4"}, "-24"},
		{models.CalculationDivision, []string{"100", "4", "5"}, "5"},
		{models.CalculationDivision, []string{"1", "3"}, "0.3333333333333333"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			got, err := Compute(tt.typ, decimals(tt.inputs...))

			require.NoError(t, err)
			require.Equal(t, tt.want, got.String())
		})
	}

	t.Run("invalid", func(t *testing.T) {
		_, err := Compute(models.CalculationDivision, decimals("1", "0"))
		require.ErrorIs(t, err, apperrors.ErrCalculationInvalid, "division by zero")

		_, err = Compute(models.CalculationAddition, decimals("1"))
		require.ErrorIs(t, err, apperrors.ErrCalculationInvalid, "single input")

		_, err = Compute("power", decimals("1", "2"))
		require.ErrorIs(t, err, apperrors.ErrCalculationInvalid, "unknown type")
	})
}

func testCalculationService(t *testing.T, withStorage func(t *testing.T, fn func(storage repository.Storage))) {
	// Create service and two users within storage
	setup := func(t *testing.T, storage repository.Storage) (*CalculationService, models.User, models.User) {
		users := make([]models.User, 0, 2)
		for _, username := range []string{"main", "other"} {
			user, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{
				Username: username, Email: username + "@example.com", HashedPassword: "hashed",
			})
			require.NoError(t, err, "creating user should not fail")
			users = append(users, user)
		}
		return NewService(storage), users[0], users[1]
	}

	t.Run("crud", func(t *testing.T) {
		withStorage(t, func(storage repository.Storage) {
			s, user, _ := setup(t, storage)

			created, err := s.CreateCalculation(t.Context(), user.ID, models.CalculationAddition, decimals("1", "2", "3"))
			require.NoError(t, err, "creating calculation should not fail")
			require.Equal(t, "6", created.Result.String())
			require.Equal(t, user.ID, created.UserID)

			listed, err := s.ListCalculations(t.Context(), user.ID)
			require.NoError(t, err)
			require.Len(t, listed, 1)
			require.Equal(t, created.ID, listed[0].ID)

			fetched, err := s.GetCalculation(t.Context(), user.ID, created.ID)
			require.NoError(t, err)
			require.Equal(t, created.ID, fetched.ID)

			updated, err := s.UpdateCalculation(t.Context(), user.ID, created.ID, Update{Inputs: decimals("10", "5")})
			require.NoError(t, err)
			require.Equal(t, "15", updated.Result.String(), "result has to be recomputed")
			require.Equal(t, models.CalculationAddition, updated.Type, "type was not set, so it has to stay")

			typ := models.CalculationDivision
			updated, err = s.UpdateCalculation(t.Context(), user.ID, created.ID, Update{Type: &typ})
			require.NoError(t, err)
			require.Equal(t, "2", updated.Result.String())

			require.NoError(t, s.DeleteCalculation(t.Context(), user.ID, created.ID))

			_, err = s.GetCalculation(t.Context(), user.ID, created.ID)
			require.ErrorIs(t, err, apperrors.ErrCalculationNotFound)
		})
	})

	t.Run("invalid calculation is not saved", func(t *testing.T) {
		withStorage(t, func(storage repository.Storage) {
			s, user, _ := setup(t, storage)

			_, err := s.CreateCalculation(t.Context(), user.ID, models.CalculationDivision, decimals("1", "0"))
			require.ErrorIs(t, err, apperrors.ErrCalculationInvalid)

			listed, err := s.ListCalculations(t.Context(), user.ID)
			require.NoError(t, err)
			require.Empty(t, listed)
		})
	})

	t.Run("invalid update keeps calculation", func(t *testing.T) {
		withStorage(t, func(storage repository.Storage) {
			s, user, _ := setup(t, storage)
			created, err := s.CreateCalculation(t.Context(), user.ID, models.CalculationDivision, decimals("10", "2"))
			require.NoError(t, err)

			_, err = s.UpdateCalculation(t.Context(), user.ID, created.ID, Update{Inputs: decimals("10", "0")})
			require.ErrorIs(t, err, apperrors.ErrCalculationInvalid)

			fetched, err := s.GetCalculation(t.Context(), user.ID, created.ID)
			require.NoError(t, err)
			require.Equal(t, "5", fetched.Result.String())
		})
	})

	t.Run("other user calculation", func(t *testing.T) {
		withStorage(t, func(storage repository.Storage) {
			s, user, other := setup(t, storage)
			created, err := s.CreateCalculation(t.Context(), user.ID, models.CalculationAddition, decimals("1", "2"))
			require.NoError(t, err)

			_, err = s.GetCalculation(t.Context(), other.ID, created.ID)
			require.ErrorIs(t, err, apperrors.ErrCalculationNotFound)

			_, err = s.UpdateCalculation(t.Context(), other.ID, created.ID, Update{Inputs: decimals("1", "1")})
			require.ErrorIs(t, err, apperrors.ErrCalculationNotFound)

			err = s.DeleteCalculation(t.Context(), other.ID, created.ID)
			require.ErrorIs(t, err, apperrors.ErrCalculationNotFound)

			listed, err := s.ListCalculations(t.Context(), other.ID)
			require.NoError(t, err)
			require.Empty(t, listed)

			_, err = s.GetCalculation(t.Context(), user.ID, uuid.New())
			require.ErrorIs(t, err, apperrors.ErrCalculationNotFound)
		})
	})
}

func TestCalculation_Memory(t *testing.T) {
	testCalculationService(t, func(t *testing.T, fn func(storage repository.Storage)) {
		fn(memory.NewStorage())
	})
}

func TestCalculation_Postgres(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	testCalculationService(t, func(t *testing.T, fn func(storage repository.Storage)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(postgres.NewStorage(tx))
		})
	})
}
