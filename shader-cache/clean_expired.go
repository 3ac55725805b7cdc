package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/tevino/abool/v2"
)

var cleanRunning = abool.NewBool(false)

func cleanTask() {
	if !cleanRunning.SetToIf(false, true) {
		return
	}
	defer cleanRunning.UnSet()
	expiredRecords, err := FindExpiredWithLimit(2000)
	if err != nil {
		log.Println(err)
		return
	}
	if len(expiredRecords) == 0 {
		return
	}
	var successCleans []int64
	for _, expiredRecord := range expiredRecords {
		err := os.Remove(filepath.Join(fsRootDir, expiredRecord.Name))
		if err != nil && !os.IsNotExist(err) {
			log.Println(err)
		} else {
			successCleans = append(successCleans, expiredRecord.ID)
		}
	}
	if len(successCleans) == 0 {
		return
	}
	log.Printf("removed %d expired shader(s)", len(successCleans))
	if err := UpdateExpiredCleanResult(successCleans); err != nil {
		log.Println(err)
	}
}
