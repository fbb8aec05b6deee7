package services

import (
	"log"
	"sync"
	"time"

	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/storage"
)

// OrphanSweepService periodically compares the storage node's file inventory
// against the references held in the database (post media, group images, user
// avatars) and deletes blobs nothing points at anymore. Files younger than
// the grace window are skipped so in-flight uploads are never reaped.
type OrphanSweepService struct {
	gateway  *storage.Gateway
	interval time.Duration
	grace    time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewOrphanSweepService(gateway *storage.Gateway, interval time.Duration) *OrphanSweepService {
	return &OrphanSweepService{
		gateway:  gateway,
		interval: interval,
		grace:    24 * time.Hour,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (s *OrphanSweepService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Println("OrphanSweepService started")

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				log.Println("OrphanSweepService stopped")
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for a running pass to finish
func (s *OrphanSweepService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// referencedFileIDs collects every file id the database still points at.
func (s *OrphanSweepService) referencedFileIDs() (map[string]bool, error) {
	refs := make(map[string]bool)

	collect := func(urls []string) {
		for _, u := range urls {
			if id, ok := storage.FileIDFromReference(u); ok {
				refs[id] = true
			}
		}
	}

	var mediaURLs []string
	if err := database.DB.Table("media").Pluck("media_url", &mediaURLs).Error; err != nil {
		return nil, err
	}
	collect(mediaURLs)

	var groupImages []string
	if err := database.DB.Table("groups").Where("image_url <> ''").Pluck("image_url", &groupImages).Error; err != nil {
		return nil, err
	}
	collect(groupImages)

	var avatars []string
	if err := database.DB.Table("users").Where("avatar_url <> ''").Pluck("avatar_url", &avatars).Error; err != nil {
		return nil, err
	}
	collect(avatars)

	return refs, nil
}

func (s *OrphanSweepService) sweep() {
	files, err := s.gateway.List()
	if err != nil {
		log.Printf("OrphanSweep: failed to list node files: %v", err)
		return
	}

	refs, err := s.referencedFileIDs()
	if err != nil {
		log.Printf("OrphanSweep: failed to collect references: %v", err)
		return
	}

	cutoff := time.Now().Add(-s.grace)
	removed := 0
	for _, f := range files {
		if refs[f.ID] {
			continue
		}
		if f.ModTime.After(cutoff) {
			continue
		}
		if err := s.gateway.Delete(f.ID); err != nil {
			log.Printf("OrphanSweep: failed to delete orphan %s: %v", f.ID, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("OrphanSweep: removed %d orphaned file(s), %d referenced, %d on node", removed, len(refs), len(files))
	}
}
