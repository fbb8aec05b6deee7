package services

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/closo/backend/internal/config"
	"github.com/closo/backend/internal/database"
	"github.com/jlaffaye/ftp"
)

// BackupSchedulerService produces a nightly database dump and optionally
// ships it to an FTP host. Media blobs live on the storage nodes and are not
// mirrored here; this protects the metadata (groups, posts, payments) that
// makes proxy references resolvable.
type BackupSchedulerService struct {
	cfg       *config.Config
	backupDir string
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func NewBackupSchedulerService(cfg *config.Config) *BackupSchedulerService {
	backupDir := os.Getenv("BACKUP_DIR")
	if backupDir == "" {
		backupDir = "/var/backups/closo"
	}
	os.MkdirAll(backupDir, 0755)
	return &BackupSchedulerService{
		cfg:       cfg,
		backupDir: backupDir,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the scheduler loop. It checks every minute whether the
// configured backup time has been reached.
func (s *BackupSchedulerService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Println("BackupScheduler started")

		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		var lastRun time.Time
		for {
			select {
			case <-ticker.C:
				if s.shouldRun(lastRun, time.Now()) {
					lastRun = time.Now()
					s.runBackup()
				}
			case <-s.stopChan:
				log.Println("BackupScheduler stopped")
				return
			}
		}
	}()
}

// Stop halts the scheduler
func (s *BackupSchedulerService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// shouldRun reports whether the daily backup time has passed since lastRun.
func (s *BackupSchedulerService) shouldRun(lastRun, now time.Time) bool {
	hour, minute := 2, 0
	if t := database.GetSetting("backup_time", ""); t != "" {
		parts := strings.Split(t, ":")
		if len(parts) == 2 {
			if h, err := strconv.Atoi(parts[0]); err == nil && h >= 0 && h <= 23 {
				hour = h
			}
			if m, err := strconv.Atoi(parts[1]); err == nil && m >= 0 && m <= 59 {
				minute = m
			}
		}
	}

	todayRun := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.Before(todayRun) {
		return false
	}
	return lastRun.Before(todayRun)
}

func (s *BackupSchedulerService) runBackup() {
	filename := fmt.Sprintf("closo_%s.sql", time.Now().Format("20060102_150405"))
	localPath := filepath.Join(s.backupDir, filename)

	if err := s.dumpDatabase(localPath); err != nil {
		log.Printf("BackupScheduler: database dump failed: %v", err)
		return
	}
	log.Printf("BackupScheduler: created backup %s", filename)

	if host := database.GetSetting("backup_ftp_host", ""); host != "" {
		if err := s.uploadToFTP(host, localPath, filename); err != nil {
			log.Printf("BackupScheduler: FTP upload failed: %v", err)
		}
	}

	s.cleanOldBackups()
}

func (s *BackupSchedulerService) dumpDatabase(outPath string) error {
	cmd := exec.Command("pg_dump",
		"-h", s.cfg.DBHost,
		"-p", strconv.Itoa(s.cfg.DBPort),
		"-U", s.cfg.DBUser,
		"-d", s.cfg.DBName,
		"-f", outPath,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+s.cfg.DBPassword)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %s", err.Error(), string(output))
	}
	return nil
}

// uploadToFTP ships a finished dump to the configured FTP host
func (s *BackupSchedulerService) uploadToFTP(host, localPath, filename string) error {
	port := 21
	if p, err := strconv.Atoi(database.GetSetting("backup_ftp_port", "21")); err == nil {
		port = p
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("FTP connection failed: %v", err)
	}
	defer conn.Quit()

	username := database.GetSetting("backup_ftp_username", "")
	password := database.GetSetting("backup_ftp_password", "")
	if err := conn.Login(username, password); err != nil {
		return fmt.Errorf("FTP login failed: %v", err)
	}

	remotePath := database.GetSetting("backup_ftp_path", "")
	if remotePath != "" && remotePath != "/" {
		if err := conn.ChangeDir(remotePath); err != nil {
			conn.MakeDir(remotePath)
			if err := conn.ChangeDir(remotePath); err != nil {
				return fmt.Errorf("FTP directory change failed: %v", err)
			}
		}
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %v", err)
	}
	defer file.Close()

	if err := conn.Stor(filename, file); err != nil {
		return fmt.Errorf("FTP upload failed: %v", err)
	}

	log.Printf("BackupScheduler: uploaded %s to FTP %s", filename, host)
	return nil
}

// cleanOldBackups removes local dumps older than the retention period
func (s *BackupSchedulerService) cleanOldBackups() {
	retentionDays := 14
	if d, err := strconv.Atoi(database.GetSetting("backup_retention_days", "14")); err == nil && d > 0 {
		retentionDays = d
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(s.backupDir)
	if err != nil {
		return
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.backupDir, file.Name()))
			log.Printf("BackupScheduler: deleted old backup %s", file.Name())
		}
	}
}
