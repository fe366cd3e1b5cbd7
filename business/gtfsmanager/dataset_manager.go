package gtfsmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/OpenTransitTools/delayreport/business/data/gtfs"
	"github.com/jmoiron/sqlx"
)

// SaveGTFSSchedule reads the gtfs schedule at source and saves it to a new DataSet wrapped inside a single
// transaction. The records are checked by building a gtfs.Schedule before anything is written
func SaveGTFSSchedule(ctx context.Context, log *log.Logger, db *sqlx.DB, source string) (*gtfs.DataSet, error) {
	start := time.Now()
	records, err := ReadScheduleRecords(ctx, log, source)
	if err != nil {
		return nil, err
	}
	if _, err = gtfs.NewSchedule(source, start, records); err != nil {
		return nil, err
	}

	ds := gtfs.DataSet{
		URL:          source,
		DownloadedAt: start,
	}
	err = transact(log, db, func(tx *sqlx.Tx) error {
		err := gtfs.SaveDataSet(tx, &ds)
		if err != nil {
			return err
		}
		// create DataSetTransaction for recording gtfs records
		dsTx := gtfs.DataSetTransaction{
			DS: ds,
			Tx: tx,
		}
		err = gtfs.SaveScheduleRecords(&dsTx, records, time.Now())
		if err != nil {
			return err
		}
		ds = dsTx.DS
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Saved %d trips and %d stop times from %s in %s", len(records.Trips), len(records.StopTimes),
		source, time.Since(start))
	return &ds, nil
}

// DeleteGTFSSchedule deletes all gtfs records associated with gtfs.DataSet with dataSetId
func DeleteGTFSSchedule(log *log.Logger,
	db *sqlx.DB,
	dataSetId int64) error {

	dataSet, err := gtfs.GetDataSet(db, dataSetId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no DataSet found with id %d", dataSetId)
		}
		return err
	}
	err = transact(log, db, func(tx *sqlx.Tx) error {
		log.Printf("Removing dataSet %v", dataSet)
		deleted, err := gtfs.DeleteDataSet(tx, dataSet.Id)
		if err != nil {
			return err
		}
		for _, table := range append(gtfs.DataSetTables(), "data_set") {
			log.Printf("Deleted %d lines from %s\n", deleted[table], table)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("Deleted DataSet %v", dataSet)
	return nil
}

// ListGTFSSchedules returns every DataSet in the database
func ListGTFSSchedules(db *sqlx.DB) ([]gtfs.DataSet, error) {
	return gtfs.GetAllDataSets(db)
}

/*
transact starts a Transaction on sqlx.DB, calls txFunc and commits or rolls back the transaction depending on the
return code of the txFunc result
*/
func transact(log *log.Logger, db *sqlx.DB, txFunc func(*sqlx.Tx) error) (err error) {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback() // err is non-nil; don't change it
			if rollbackErr != nil {
				log.Printf("Received error while attempting to rollback transaction. error:%v", rollbackErr)
			}
			return
		}
		err = tx.Commit() // err is nil; if Commit returns error update err
	}()
	err = txFunc(tx)
	return err
}
