package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gorm.io/gorm"
)

// ExportOptions contains options for exporting broadcast records
type ExportOptions struct {
	OrganizationID string
	List           *ListOptions
	OutputDir      string
}

// BroadcastExporter handles exporting the broadcast audit trail to CSV
type BroadcastExporter struct {
	store *Store
}

// NewBroadcastExporter creates a new broadcast exporter
func NewBroadcastExporter(db *gorm.DB) *BroadcastExporter {
	return &BroadcastExporter{store: NewStore(db)}
}

// ExportToCSV exports broadcast records to CSV format
func (e *BroadcastExporter) ExportToCSV(writer io.Writer, options ExportOptions) error {
	records, err := e.store.ListBroadcasts(options.OrganizationID, options.List)
	if err != nil {
		return fmt.Errorf("failed to get broadcasts: %w", err)
	}

	csvWriter := csv.NewWriter(writer)
	defer csvWriter.Flush()

	header := []string{"ID", "OrganizationID", "Address", "TxID", "Kind", "RecoveryID", "Attempts", "Accepted", "Rejection", "CreatedAt"}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write header to CSV: %w", err)
	}

	for _, record := range records {
		row := []string{
			fmt.Sprintf("%d", record.ID),
			record.OrganizationID,
			record.Address,
			record.TxID,
			record.Kind,
			record.RecoveryID,
			fmt.Sprintf("%d", record.Attempts),
			fmt.Sprintf("%t", record.Accepted),
			string(record.Rejection),
			record.CreatedAt.String(),
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write row to CSV: %w", err)
		}
	}
	return nil
}

// ExportToFile exports broadcast records to a CSV file
func (e *BroadcastExporter) ExportToFile(options ExportOptions) (string, error) {
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", options.OutputDir, err)
	}

	fileName := filepath.Join(options.OutputDir, fmt.Sprintf("broadcasts_%s.csv", options.OrganizationID))
	file, err := os.Create(fileName)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file %s: %w", fileName, err)
	}
	defer file.Close()

	if err := e.ExportToCSV(file, options); err != nil {
		return "", fmt.Errorf("failed to export to CSV: %w", err)
	}

	return fileName, nil
}

func runExportBroadcastsCli(logger Logger) {
	logger = logger.NewSystem("export-broadcasts")
	if len(os.Args) < 3 {
		logger.Fatal("Usage: tradenode export-broadcasts <organizationID>")
	}

	orgID := os.Args[2]

	config, err := LoadConfig(logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	db, err := ConnectToDB(config.dbConf)
	if err != nil {
		logger.Fatal("Failed to setup database", "error", err)
	}

	exporter := NewBroadcastExporter(db)
	options := ExportOptions{
		OrganizationID: orgID,
		List:           &ListOptions{Limit: MaxLimit},
		OutputDir:      "csv_export",
	}

	fileName, err := exporter.ExportToFile(options)
	if err != nil {
		logger.Fatal("Failed to export broadcasts", "error", err)
	}
	logger.Info("Successfully exported broadcasts", "file", fileName)
}
