package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Agrid-Dev/huumbridge/cmd/app"
	"github.com/Agrid-Dev/huumbridge/internal/huum"
	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

// RecordStatus polls the HUUM API and writes one CSV row per sample. Failed
// fetches are recorded with an empty temperature and the error text.
func RecordStatus(ctx context.Context, client *huum.Client, unit sauna.Unit, samples int, every time.Duration, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Sample", "Time", "Temperature", "Target", "StatusCode", "Heating", "Error"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for i := range samples {
		row := []string{strconv.Itoa(i + 1), time.Now().UTC().Format(time.RFC3339), "", "", "", "", ""}

		status, err := client.Status(ctx)
		if err != nil {
			row[6] = err.Error()
		} else {
			row[2] = formatReading(status.Temperature, unit)
			row[3] = formatReading(status.TargetTemperature, unit)
			row[4] = strconv.Itoa(int(status.StatusCode))
			row[5] = status.StatusCode.HeatingState().String()
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %v", err)
		}
		writer.Flush()

		if i == samples-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return writer.Error()
}

func formatReading(r sauna.Reading, unit sauna.Unit) string {
	c, err := r.Celsius()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%.2f", sauna.CelsiusToDisplay(c, unit))
}

func main() {
	var (
		configPath string
		samples    int
		every      time.Duration
		out        string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.IntVar(&samples, "samples", 120, "number of status samples")
	flag.DurationVar(&every, "every", 30*time.Second, "delay between samples")
	flag.StringVar(&out, "out", "huum_status.csv", "output CSV file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	unit, err := cfg.Unit()
	if err != nil {
		log.Fatal(err)
	}
	client, err := huum.New(cfg.HuumConfig())
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := RecordStatus(ctx, client, unit, samples, every, out); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
