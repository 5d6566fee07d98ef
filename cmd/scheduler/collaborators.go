package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/example/college-scheduler/internal/application"
	"github.com/example/college-scheduler/internal/timetable"
)

// The collaborators below stand in for the surrounding platform (admin
// backend, push delivery, cache tier) so the daemon runs standalone. Each
// implements one of the application's collaborator interfaces and is
// replaced by a real client when the platform is attached.

// catalogueFile is the JSON document the file-backed template store reads.
type catalogueFile struct {
	Timetables []catalogueTimetable `json:"timetables"`
}

type catalogueTimetable struct {
	BatchID   string             `json:"batch_id"`
	SectionID string             `json:"section_id"`
	CollegeID string             `json:"college_id"`
	Subjects  []catalogueSubject `json:"subjects"`
	Entries   []catalogueEntry   `json:"entries"`
}

type catalogueSubject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type catalogueEntry struct {
	ID        string `json:"id"`
	Weekday   string `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Subject   string `json:"subject"`
	Room      string `json:"room"`
	Kind      string `json:"kind"`
}

// fileTemplateStore serves timetables and subject lookups from a JSON
// catalogue on disk, reloading lazily on each listing.
type fileTemplateStore struct {
	mu   sync.Mutex
	path string
}

func newFileTemplateStore(path string) *fileTemplateStore {
	return &fileTemplateStore{path: path}
}

func (s *fileTemplateStore) load() (catalogueFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return catalogueFile{}, fmt.Errorf("failed to read timetable catalogue: %w", err)
	}
	var catalogue catalogueFile
	if err := json.Unmarshal(data, &catalogue); err != nil {
		return catalogueFile{}, fmt.Errorf("failed to parse timetable catalogue: %w", err)
	}
	return catalogue, nil
}

func (s *fileTemplateStore) ListActiveTimetables(ctx context.Context) ([]application.Timetable, error) {
	catalogue, err := s.load()
	if err != nil {
		return nil, err
	}

	timetables := make([]application.Timetable, 0, len(catalogue.Timetables))
	for _, tt := range catalogue.Timetables {
		entries := make([]timetable.Entry, 0, len(tt.Entries))
		for _, entry := range tt.Entries {
			weekday, err := parseWeekday(entry.Weekday)
			if err != nil {
				return nil, err
			}
			entries = append(entries, timetable.Entry{
				ID:          entry.ID,
				Weekday:     weekday,
				StartTime:   entry.StartTime,
				EndTime:     entry.EndTime,
				SubjectName: entry.Subject,
				Room:        entry.Room,
				Kind:        entry.Kind,
			})
		}
		timetables = append(timetables, application.Timetable{
			BatchID:   tt.BatchID,
			SectionID: tt.SectionID,
			CollegeID: tt.CollegeID,
			Entries:   entries,
		})
	}
	return timetables, nil
}

func (s *fileTemplateStore) FindSubject(ctx context.Context, name, batchID, sectionID string) (string, error) {
	catalogue, err := s.load()
	if err != nil {
		return "", err
	}
	for _, tt := range catalogue.Timetables {
		if tt.BatchID != batchID || tt.SectionID != sectionID {
			continue
		}
		for _, subject := range tt.Subjects {
			if subject.Name == name {
				return subject.ID, nil
			}
		}
	}
	return "", application.ErrNotFound
}

func parseWeekday(name string) (time.Weekday, error) {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if day.String() == name {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q in timetable catalogue", name)
}

// logBus writes fan-out events to the structured log. Delivery to push/email
// channels belongs to the external notification platform.
type logBus struct {
	logger *slog.Logger
}

func (b *logBus) Publish(ctx context.Context, event application.NotificationEvent) error {
	b.logger.Info("notification event",
		"type", string(event.Type),
		"batch_id", event.BatchID,
		"section_id", event.SectionID,
		"class_id", event.ClassID,
		"title", event.Title,
		"body", event.Body,
		"date", event.DateString,
		"recipients", len(event.Tokens))
	return nil
}

// noopCache satisfies the cache collaborator when no cache tier is deployed.
type noopCache struct{}

func (noopCache) InvalidateRoster(ctx context.Context, batchID, sectionID string) error {
	return nil
}

// emptyDirectory reports no opted-in reminder recipients.
type emptyDirectory struct{}

func (emptyDirectory) FindOptedInUsers(ctx context.Context, batchID, sectionID string, offsetMinutes int) ([]application.Recipient, error) {
	return nil, nil
}

// noAttendance reports that no attendance records exist, which keeps
// standalone deletes permissive.
type noAttendance struct{}

func (noAttendance) HasAttendanceFor(ctx context.Context, sessionClassID string) (bool, error) {
	return false, nil
}
