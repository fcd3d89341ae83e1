package repository

import (
	"offload/internal/db"
	"offload/internal/model"
)

type RunRepository struct{}

func NewRunRepository() *RunRepository {
	return &RunRepository{}
}

func (r *RunRepository) Save(result model.PhaseResult) error {
	record := model.NewRunRecord(result)
	return db.DB.Create(&record).Error
}

func (r *RunRepository) GetRecent(limit int) ([]model.RunRecord, error) {
	var records []model.RunRecord
	result := db.DB.
		Order("started_at desc").
		Limit(limit).
		Find(&records)

	return records, result.Error
}

func (r *RunRepository) GetByTask(label string, limit int) ([]model.RunRecord, error) {
	var records []model.RunRecord
	result := db.DB.
		Where("task_label = ?", label).
		Order("started_at desc").
		Limit(limit).
		Find(&records)

	return records, result.Error
}

func (r *RunRepository) GetFailed() ([]model.RunRecord, error) {
	var records []model.RunRecord
	result := db.DB.
		Where("status IN ?", []model.PhaseStatus{model.StatusPartial, model.StatusFailed}).
		Order("started_at desc").
		Find(&records)

	return records, result.Error
}

type Stats struct {
	Total   int64
	Success int64
	Failed  int64
}

func (r *RunRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.RunRecord{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.RunRecord{}).
		Where("status = ?", model.StatusSuccess).
		Count(&stats.Success).Error; err != nil {
		return stats, err
	}

	stats.Failed = stats.Total - stats.Success
	return stats, nil
}
