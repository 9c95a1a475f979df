package storage

import "github.com/gustakei/lave/models"

// ReportWriter is the interface any report export backend must satisfy.
type ReportWriter interface {
	WriteReport(results []*models.UnitResult) error
	Close() error
}
