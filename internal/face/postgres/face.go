package postgres

import (
	"context"

	faceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/face"
	"github.com/frahmantamala/attendance/internal/face"
	"gorm.io/gorm"
)

type FaceRepository struct {
	db *gorm.DB
}

func NewFaceRepository(db *gorm.DB) face.Repository {
	return &FaceRepository{db: db}
}

func (r *FaceRepository) Create(ctx context.Context, row *faceDatamodel.FaceEmbedding) error {
	return r.db.WithContext(ctx).Create(row).Error
}

type templateRow struct {
	EmployeeID string
	Name       string
	Embedding  faceDatamodel.Vector
}

func (r *FaceRepository) ListActiveTemplates(ctx context.Context) ([]face.Template, error) {
	var rows []templateRow
	err := r.db.WithContext(ctx).
		Table("face_embeddings AS fe").
		Select("fe.employee_id, e.name, fe.embedding").
		Joins("JOIN employees e ON e.employee_id = fe.employee_id").
		Where("e.is_active = ?", true).
		Order("fe.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	templates := make([]face.Template, 0, len(rows))
	for _, row := range rows {
		templates = append(templates, face.Template{
			EmployeeID: row.EmployeeID,
			Name:       row.Name,
			Embedding:  []float32(row.Embedding),
		})
	}
	return templates, nil
}
