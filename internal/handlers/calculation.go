package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/handlers/render"
	"github.com/nkiryanov/calcboard/internal/handlers/userctx"
	"github.com/nkiryanov/calcboard/internal/logger"
	"github.com/nkiryanov/calcboard/internal/models"
	"github.com/nkiryanov/calcboard/internal/service/calculation"
)

func handleCreateCalculation(s calculationService, logger logger.Logger) http.Handler {
	type request struct {
		Type   models.CalculationType `json:"type" validate:"required,oneof=addition subtraction multiplication division"`
		Inputs []decimal.Decimal      `json:"inputs" validate:"required,min=2"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userctx.MustFromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			logger.Debug("Create calculation request rejected", "error", err)
			return
		}

		c, err := s.CreateCalculation(r.Context(), user.ID, data.Type, data.Inputs)
		if err != nil {
			render.AppError(w, err)
			return
		}

		render.JSONWithStatus(w, newCalculationResponse(c), http.StatusCreated)
	})
}

func handleListCalculations(s calculationService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userctx.MustFromContext(r.Context())

		calculations, err := s.ListCalculations(r.Context(), user.ID)
		if err != nil {
			render.AppError(w, err)
			return
		}

		resp := make([]calculationResponse, 0, len(calculations))
		for _, c := range calculations {
			resp = append(resp, newCalculationResponse(c))
		}
		render.JSON(w, resp)
	})
}

func handleGetCalculation(s calculationService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userctx.MustFromContext(r.Context())

		id, ok := calculationID(w, r)
		if !ok {
			return
		}

		c, err := s.GetCalculation(r.Context(), user.ID, id)
		if err != nil {
			render.AppError(w, err)
			return
		}

		render.JSON(w, newCalculationResponse(c))
	})
}

func handleUpdateCalculation(s calculationService, logger logger.Logger) http.Handler {
	type request struct {
		Type   *models.CalculationType `json:"type" validate:"omitnil,oneof=addition subtraction multiplication division"`
		Inputs []decimal.Decimal       `json:"inputs" validate:"omitnil,min=2"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userctx.MustFromContext(r.Context())

		id, ok := calculationID(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			logger.Debug("Update calculation request rejected", "error", err)
			return
		}

		c, err := s.UpdateCalculation(r.Context(), user.ID, id, calculation.Update{
			Type:   data.Type,
			Inputs: data.Inputs,
		})
		if err != nil {
			render.AppError(w, err)
			return
		}

		render.JSON(w, newCalculationResponse(c))
	})
}

func handleDeleteCalculation(s calculationService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userctx.MustFromContext(r.Context())

		id, ok := calculationID(w, r)
		if !ok {
			return
		}

		if err := s.DeleteCalculation(r.Context(), user.ID, id); err != nil {
			render.AppError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// Not an uuid can't be an id of existing calculation
func calculationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.AppError(w, apperrors.ErrCalculationNotFound)
		return uuid.Nil, false
	}
	return id, true
}
