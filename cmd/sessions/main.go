package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"facedetect/internal/model"
	"facedetect/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/sessions.db", "Database path")
	snapshotsDir := flag.String("snapshots", "snapshots", "Directory containing snapshots")
	reindex := flag.Bool("reindex", false, "Insert snapshot files missing from the database")
	flag.Parse()

	db, err := sqlite.New(*dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	sessions := sqlite.NewSessionRepository(db)

	if *reindex {
		if err := reindexSnapshots(db, sessions, *snapshotsDir); err != nil {
			log.Fatalf("Failed to reindex snapshots: %v", err)
		}
	}

	all, err := sessions.GetAll()
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}
	if len(all) == 0 {
		fmt.Println("No sessions recorded")
		return
	}

	fmt.Printf("\n📊 Sessions in %s:\n", *dbPath)
	for _, s := range all {
		stats, err := sessions.GetStats(s.ID)
		if err != nil {
			log.Printf("⚠️  Failed to get stats for %s: %v", s.ID, err)
			continue
		}
		fmt.Printf("   %s  %s\n", s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("      - duration: %s\n", duration(s))
		fmt.Printf("      - device: %d, scale: %g\n", s.DeviceIndex, s.ScaleFactor)
		fmt.Printf("      - frames: %d, state: %s\n", s.Frames, s.FinalState)
		fmt.Printf("      - snapshots: %d (%d bytes), detections: %d\n", stats.Snapshots, stats.TotalSizeBytes, stats.Detections)
	}
}

func duration(s model.Session) string {
	if s.EndedAt == nil {
		return "unfinished"
	}
	return s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
}

// reindexSnapshots adds rows for snapshot files that are on disk but not in the
// database. Sessions unknown to the database get a placeholder row.
func reindexSnapshots(db *sqlite.DB, sessions *sqlite.SessionRepository, dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	snapshots := sqlite.NewSnapshotRepository(db)
	added, skipped := 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		name, err := model.ParseSnapshotFilename(file.Name())
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		existing, err := snapshots.GetByFilename(file.Name())
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("⚠️  Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		session, err := sessions.GetByID(name.SessionID)
		if err != nil {
			return err
		}
		if session == nil {
			if err := sessions.Insert(&model.Session{
				ID:         name.SessionID,
				StartedAt:  name.CapturedAt,
				FinalState: "unknown",
			}); err != nil {
				return err
			}
		}

		if _, err := snapshots.Insert(&model.Snapshot{
			SessionID:  name.SessionID,
			Filename:   file.Name(),
			FrameSeq:   name.FrameSeq,
			Faces:      name.Faces,
			CapturedAt: name.CapturedAt,
			FilePath:   filepath.Join(dir, file.Name()),
			FileSize:   info.Size(),
		}); err != nil {
			return err
		}
		added++
	}

	fmt.Printf("✅ Reindexed %d snapshots\n", added)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid format or errors)\n", skipped)
	}
	return nil
}
