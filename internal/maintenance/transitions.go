package maintenance

import (
	"github.com/shopspring/decimal"

	"rentdesk/models"
)

type requestEdge struct {
	from, to models.RequestStatus
}

// Таблица переходов заявки. APPROVED -> CANCELLED разрешён только каскадом от работ.
var requestTransitions = map[requestEdge]bool{
	{models.RequestPending, models.RequestApproved}:  true,
	{models.RequestPending, models.RequestRejected}:  true,
	{models.RequestPending, models.RequestCancelled}: true,
}

// checkRequestTransition возвращает noop=true для повторного входа в тот же терминальный статус
func checkRequestTransition(from, to models.RequestStatus, cascade bool) (noop bool, err error) {
	if !to.Valid() {
		return false, validationError("status", "unknown request status %q", to)
	}
	if from == to && to.Terminal() && to != models.RequestApproved {
		return true, nil
	}
	if requestTransitions[requestEdge{from, to}] {
		return false, nil
	}
	if cascade && from == models.RequestApproved && to == models.RequestCancelled {
		return false, nil
	}
	return false, &TransitionError{Entity: "maintenance request", From: string(from), To: string(to)}
}

// StatusExtra: дополнительные поля, записываемые вместе со сменой статуса работ
type StatusExtra struct {
	Cost decimal.NullDecimal
}

type jobEdge struct {
	from, to models.JobStatus
}

type jobPrecondition func(job *models.MaintenanceJob, extra StatusExtra) error

// Таблица переходов работ; отсутствующая пара означает конфликт состояния
var jobTransitions = map[jobEdge]jobPrecondition{
	{models.JobPending, models.JobInProgress}:    nil,
	{models.JobPending, models.JobCompleted}:     requirePositiveCost,
	{models.JobPending, models.JobCancelled}:     nil,
	{models.JobInProgress, models.JobPending}:    nil,
	{models.JobInProgress, models.JobCompleted}:  requirePositiveCost,
	{models.JobInProgress, models.JobCancelled}:  nil,
	{models.JobPending, models.JobPending}:       nil,
	{models.JobInProgress, models.JobInProgress}: nil,
	{models.JobCompleted, models.JobCompleted}:   requirePositiveCost,
	{models.JobCancelled, models.JobCancelled}:   nil,
}

// resolveCost: переданная стоимость важнее сохранённой
func resolveCost(job *models.MaintenanceJob, extra StatusExtra) decimal.NullDecimal {
	if extra.Cost.Valid {
		return extra.Cost
	}
	return job.Cost
}

// колонка cost: NUMERIC(14, 2)
const costScale = 2

var maxCost = decimal.New(1, 12)

// checkCostFits отсекает стоимость, которую колонка округлит до нуля или не вместит
func checkCostFits(cost decimal.Decimal) error {
	if cost.IsNegative() {
		return validationError("cost", "cost cannot be negative")
	}
	if !cost.Equal(cost.Round(costScale)) {
		return validationError("cost", "cost must have at most %d decimal places", costScale)
	}
	if cost.GreaterThanOrEqual(maxCost) {
		return validationError("cost", "cost must be less than %s", maxCost.String())
	}
	return nil
}

func requirePositiveCost(job *models.MaintenanceJob, extra StatusExtra) error {
	cost := resolveCost(job, extra)
	if !cost.Valid || !cost.Decimal.IsPositive() {
		return validationError("cost", "cost must be greater than zero to complete a job")
	}
	return nil
}

// checkJobTransition проверяет пару статусов и её предусловие до любых записей
func checkJobTransition(job *models.MaintenanceJob, to models.JobStatus, extra StatusExtra) (noop bool, err error) {
	if !to.Valid() {
		return false, validationError("status", "unknown job status %q", to)
	}
	if extra.Cost.Valid {
		if err := checkCostFits(extra.Cost.Decimal); err != nil {
			return false, err
		}
	}
	pre, ok := jobTransitions[jobEdge{job.Status, to}]
	if !ok {
		return false, &TransitionError{Entity: "maintenance job", From: string(job.Status), To: string(to)}
	}
	if pre != nil {
		if err := pre(job, extra); err != nil {
			return false, err
		}
	}
	return job.Status == to && !extra.Cost.Valid, nil
}
