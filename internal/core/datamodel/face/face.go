package face

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("face: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("face: CBOR decoder initialization failed: " + err.Error())
	}
}

// Vector is a face embedding persisted as a CBOR array of float32.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return encMode.Marshal([]float32(v))
}

func (v *Vector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	var data []byte
	switch s := src.(type) {
	case []byte:
		data = s
	case string:
		data = []byte(s)
	default:
		return fmt.Errorf("face: cannot scan %T into Vector", src)
	}
	var out []float32
	if err := decMode.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("face: decode vector: %w", err)
	}
	*v = out
	return nil
}

func (Vector) GormDataType() string {
	return "bytes"
}

type FaceEmbedding struct {
	ID         int64     `gorm:"primaryKey"`
	EmployeeID string    `gorm:"column:employee_id;index;not null;size:50"`
	Embedding  Vector    `gorm:"column:embedding;not null"`
	ImageHash  string    `gorm:"column:image_hash;size:64"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (FaceEmbedding) TableName() string {
	return "face_embeddings"
}
