// Package gtfsmanager provides support for retrieving, reading and parsing gtfs schedules into a gtfs.Schedule
package gtfsmanager

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
	"github.com/OpenTransitTools/delayreport/foundation/httpclient"
)

// downloadTimeout limits how long retrieving a remote gtfs zip file may take
const downloadTimeout = 5 * time.Minute

// gtfsFile names a file in a gtfs schedule and the gtfsRowReader that knows how to read it
type gtfsFile struct {
	name      string
	optional  bool
	rowReader gtfsRowReader
}

// gtfsFiles lists the files read into a schedule, in the order they are read
func gtfsFiles() []gtfsFile {
	return []gtfsFile{
		{name: "trips.txt", rowReader: &tripRowReader{}},
		{name: "stops.txt", rowReader: &stopRowReader{}},
		{name: "stop_times.txt", rowReader: &stopTimeRowReader{}},
		{name: "calendar.txt", optional: true, rowReader: &calendarRowReader{}},
		{name: "calendar_dates.txt", optional: true, rowReader: &calendarDateRowReader{}},
	}
}

// LoadSchedule reads a gtfs schedule from source and places it on serviceDay.
// source may be a directory holding the gtfs txt files, a gtfs zip file or a http(s) url to a gtfs zip file.
// returns *gtfs.LoadError when files, columns or values are missing or malformed
func LoadSchedule(ctx context.Context, log *log.Logger, source string, serviceDay time.Time) (*gtfs.Schedule, error) {
	start := time.Now()
	records, err := ReadScheduleRecords(ctx, log, source)
	if err != nil {
		return nil, err
	}
	schedule, err := gtfs.NewSchedule(source, serviceDay, records)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %s in %s", schedule, time.Since(start))
	return schedule, nil
}

// ReadScheduleRecords reads the gtfs files at source without placing them on a service day.
// source is interpreted as in LoadSchedule
func ReadScheduleRecords(ctx context.Context, log *log.Logger, source string) (gtfs.ScheduleRecords, error) {
	if isRemote(source) {
		return readRemoteRecords(ctx, log, source)
	}
	info, err := os.Stat(source)
	if err != nil {
		return gtfs.ScheduleRecords{}, &gtfs.LoadError{Source: source, Err: err}
	}
	if info.IsDir() {
		return readScheduleRecords(log, os.DirFS(source), source)
	}
	return readGtfsZipFile(log, source, source)
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// readRemoteRecords downloads the gtfs zip file at url into a temporary file and reads it
func readRemoteRecords(ctx context.Context, log *log.Logger, url string) (gtfs.ScheduleRecords, error) {
	tempDir, err := os.MkdirTemp("", "delay-reporter-gtfs")
	if err != nil {
		return gtfs.ScheduleRecords{}, &gtfs.LoadError{
			Source: url,
			Err:    fmt.Errorf("unable to create temporary directory: %w", err),
		}
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.Printf("unable to remove temporary directory %s, error: %v", tempDir, err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	localPath := filepath.Join(tempDir, "gtfs.zip")
	log.Printf("Downloading gtfs file from %s", url)
	downloaded, err := httpclient.DownloadRemoteFile(ctx, http.DefaultClient, localPath, url)
	if err != nil {
		return gtfs.ScheduleRecords{}, &gtfs.LoadError{Source: url, Err: fmt.Errorf("unable to download gtfs file: %w", err)}
	}
	log.Printf("Downloaded %d bytes from %s, ETag:%q", downloaded.Size, url, downloaded.RemoteFileInfo.ETag)
	return readGtfsZipFile(log, url, downloaded.LocalFilePath)
}

// readGtfsZipFile reads local zip file at localGTFSFilePath and reads the gtfs files inside
func readGtfsZipFile(log *log.Logger, source string, localGTFSFilePath string) (gtfs.ScheduleRecords, error) {
	r, err := zip.OpenReader(localGTFSFilePath)
	if err != nil {
		return gtfs.ScheduleRecords{}, &gtfs.LoadError{Source: source, Err: err}
	}
	//close the file after we are done
	defer func() {
		err := r.Close()
		if err != nil {
			log.Printf("unable to close zip file %s, error: %v", localGTFSFilePath, err)
		}
	}()
	return readScheduleRecords(log, r, source)
}

// readScheduleRecords reads each file listed by gtfsFiles from fsys.
// returns *gtfs.LoadError listing every missing required file
func readScheduleRecords(log *log.Logger, fsys fs.FS, source string) (gtfs.ScheduleRecords, error) {
	records := gtfs.ScheduleRecords{}
	files := gtfsFiles()

	missingFiles := make([]string, 0)
	for _, file := range files {
		if file.optional {
			continue
		}
		if _, err := fs.Stat(fsys, file.name); err != nil {
			missingFiles = append(missingFiles, file.name)
		}
	}
	if len(missingFiles) > 0 {
		return records, &gtfs.LoadError{
			Source: source,
			Err:    fmt.Errorf("missing the following file(s) %s", strings.Join(missingFiles, ",")),
		}
	}

	for _, file := range files {
		err := loadGtfsFile(log, fsys, source, file, &records)
		if err != nil {
			return records, err
		}
	}
	return records, nil
}

// loadGtfsFile opens file in fsys and reads it with its gtfsRowReader
func loadGtfsFile(log *log.Logger, fsys fs.FS, source string, file gtfsFile, records *gtfs.ScheduleRecords) error {
	start := time.Now()
	f, err := fsys.Open(file.name)
	if err != nil {
		if file.optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &gtfs.LoadError{Source: source, File: file.name, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()
	parser, err := makeGTFSFileParser(f, source, file.name)
	if err != nil {
		return err
	}
	err = loadGTFSRows(records, parser, file.rowReader)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d rows in file %s in %s\n", parser.line-2, parser.Filename, time.Since(start))
	return nil
}
