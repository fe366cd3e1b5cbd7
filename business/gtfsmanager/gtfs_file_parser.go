package gtfsmanager

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
)

// gtfsRowReader interface defines methods used to read rows from a gtfs csv file into gtfs.ScheduleRecords
type gtfsRowReader interface {

	// requiredColumns lists headers that must be present in the file, even if values in them may be empty
	requiredColumns() []string

	// addRow should read the current line from gtfsFileParser and append the resulting record to records
	addRow(parser *gtfsFileParser, records *gtfs.ScheduleRecords) error
}

// gtfsFileParser holds information about a cvs file. Methods to read columns for records. Errors while extracting data types
// are stored in errors array which record the line number the error happened.
type gtfsFileParser struct {
	Source         string
	Filename       string
	line           int
	cvsReader      *csv.Reader
	headers        []string
	currentRecords []string
	errors         []error
}

// makeGTFSFileParser creates new gtfsFileParser from io.Reader
func makeGTFSFileParser(r io.Reader, source string, filename string) (*gtfsFileParser, error) {
	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return nil, &gtfs.LoadError{
			Source: source,
			File:   filename,
			Err:    fmt.Errorf("unable to load header: %w", err),
		}
	}
	removeBOMIfPresent(headers)
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	return &gtfsFileParser{
		Source:         source,
		Filename:       filename,
		line:           1,
		cvsReader:      csvReader,
		headers:        headers,
		currentRecords: headers,
	}, nil
}

func removeBOMIfPresent(headers []string) {
	if len(headers) < 1 {
		return
	}
	firstHeader := headers[0]
	if len(firstHeader) < 1 {
		return
	}
	runes := []rune(firstHeader) // convert string to runes
	if runes[0] == '\uFEFF' {    //check for BOM
		headers[0] = string(runes[1:])
	}
}

// missingColumns returns the names that aren't present in the file's headers
func (C *gtfsFileParser) missingColumns(names []string) []string {
	missing := make([]string, 0)
	for _, name := range names {
		if indexOf(name, C.headers) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// getString retrieves string
// returns empty string if missing
func (C *gtfsFileParser) getString(name string, optional bool) string {
	result := C.getStringPointer(name, optional)
	if result == nil {
		return ""
	}
	return *result
}

// getStringPointer retrieves string pointer
// returns nil if missing
func (C *gtfsFileParser) getStringPointer(name string, optional bool) *string {
	result, err := findValue(name, C.currentRecords, C.headers, optional)
	if err != nil {
		C.errors = append(C.errors, err)
	}
	return result
}

// getInt retrieves int
// returns 0 if missing.
func (C *gtfsFileParser) getInt(name string, optional bool) int {
	result, err := getInt(name, C.currentRecords, C.headers, optional)
	if err != nil {
		C.errors = append(C.errors, err)
	}
	if result == nil {
		return 0
	}
	return *result
}

// getGTFSDatePointer retrieves date in gtfs format as time.Time pointer
// returns nil if missing
func (C *gtfsFileParser) getGTFSDatePointer(name string, optional bool) *time.Time {
	stringValue, err := findValue(name, C.currentRecords, C.headers, optional)
	if err != nil {
		C.errors = append(C.errors, err)
		return nil
	}
	if stringValue == nil || len(*stringValue) == 0 && optional {
		return nil
	}
	result, err := timeFromYYYYMMDD(*stringValue)
	if err != nil {
		C.errors = append(C.errors, csvError(name, err))
		return nil
	}
	return &result
}

// getGTFSDate retrieves date in gtfs format
// returns default time.Time if missing
func (C *gtfsFileParser) getGTFSDate(name string, optional bool) time.Time {
	result := C.getGTFSDatePointer(name, optional)
	if result != nil {
		return *result
	}
	return time.Time{}
}

// getGTFSTimePointer retrieves seconds since midnight in gtfs format from current row
// returns nil if missing and optional is true
func (C *gtfsFileParser) getGTFSTimePointer(name string, optional bool) *int {
	result, err := getGTFSTime(name, C.currentRecords, C.headers, optional)
	if err != nil {
		C.errors = append(C.errors, err)
	}
	return result
}

// getError retrieve errors encountered on the current line as a *gtfs.LoadError
func (C *gtfsFileParser) getError() error {
	if len(C.errors) > 0 {
		return &gtfs.LoadError{
			Source: C.Source,
			File:   C.Filename,
			Line:   C.line,
			Err:    errors.Join(C.errors...),
		}
	}
	return nil
}

// addParseError appends error to list of parsing errors encountered in csv file
func (C *gtfsFileParser) addParseError(err error) {
	C.errors = append(C.errors, err)
}

// nextLine moves csvReader one line forward
func (C *gtfsFileParser) nextLine() error {
	var err error
	C.currentRecords, err = C.cvsReader.Read()
	C.line += 1
	return err
}

// find index of elements that matches name string. returns -1 if not found
func indexOf(name string, elements []string) int {
	for i, value := range elements {
		if name == value {
			return i
		}
	}
	return -1
}

// findValue retrieves string value from csv records
// returns nil if record isn't present and optional is true
func findValue(name string, records []string, headers []string, optional bool) (*string, error) {
	index := indexOf(name, headers)
	if index < 0 {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to find header: %s", name)
	}
	if len(records) <= index {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("records are too short to find header at %v named %s", index, name)
	}
	value := records[index]
	if len(value) == 0 && !optional {
		return nil, fmt.Errorf("missing required value in column %v", name)
	}
	return &value, nil
}

// getInt retrieves int from csv records
// returns nil if record isn't present and optional is true
func getInt(name string, records []string, headers []string, optional bool) (*int, error) {
	value, err := findValue(name, records, headers, optional)
	if err != nil || value == nil {
		return nil, err
	}
	str := strings.TrimSpace(*value)
	if len(str) == 0 {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("missing required value in column %v", name)
	}
	result, err := strconv.Atoi(str)
	if err != nil {
		return nil, csvError(name, err)
	}
	return &result, nil
}

// csvError convenience method for formatting an error in a csv column.
func csvError(name string, err error) error {
	return fmt.Errorf("unable to parse column %s, error: %w", name, err)
}

// getGTFSTime retrieves gtfs seconds since midnight from records
func getGTFSTime(name string, records []string, headers []string, optional bool) (*int, error) {
	value, err := findValue(name, records, headers, optional)
	if err != nil || value == nil {
		return nil, err
	}
	//check for empty string
	str := strings.TrimSpace(*value)
	if len(str) == 0 { //empty string
		if optional {
			// it's ok that its empty
			return nil, nil
		}
		// it's not ok its empty
		return nil, fmt.Errorf("missing required value in column %v", name)

	}
	result, err := gtfs.SecondsFromGTFSTime(str)
	if err != nil {
		return nil, csvError(name, err)
	}
	return &result, nil
}

// timeFromYYYYMMDD retrieves date from gtfs date formatted string:
// Service day in the YYYYMMDD format. Since time within a service day can be above 24:00:00, a service day often contains information for the subsequent day(s).
// Example: 20180913 for September 13th, 2018.
func timeFromYYYYMMDD(dateString string) (time.Time, error) {
	const layout = "20060102"
	result, err := time.Parse(layout, strings.TrimSpace(dateString))
	return result, err
}

// loadGTFSRows iterates over all rows in gtfsFileParser and feeds them into rowReader.
// reading halts if an error occurs and the error is returned
func loadGTFSRows(records *gtfs.ScheduleRecords, parser *gtfsFileParser, rowReader gtfsRowReader) error {
	missing := parser.missingColumns(rowReader.requiredColumns())
	if len(missing) > 0 {
		return &gtfs.LoadError{
			Source: parser.Source,
			File:   parser.Filename,
			Err:    fmt.Errorf("missing required column(s) %s", strings.Join(missing, ",")),
		}
	}

	for {
		err := parser.nextLine()

		if err == io.EOF {
			break
		}
		if err != nil {
			parser.addParseError(err)
			return parser.getError()
		}

		err = rowReader.addRow(parser, records)

		if err != nil {
			var loadError *gtfs.LoadError
			if errors.As(err, &loadError) {
				return err
			}
			parser.addParseError(err)
			return parser.getError()
		}
	}
	return nil
}
