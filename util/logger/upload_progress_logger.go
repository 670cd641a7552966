package logger

import (
	"github.com/op/go-logging"
)

// UploadProgressLogger logs the progress of a minio upload. Pass it
// as PutObjectOptions.Progress; minio calls Read with each chunk it
// sends.
type UploadProgressLogger struct {
	logger         *logging.Logger
	chunkNumber    int
	totalBytes     int64
	fileSize       int64
	lastPctPrinted float64
	prefix         string
}

const _100MB = int64(104857600)
const _1GB = int64(1073741824)
const _10GB = int64(10737418240)

// NewUploadProgressLogger creates a new UploadProgressLogger.
func NewUploadProgressLogger(logger *logging.Logger, prefix string, fileSize int64) *UploadProgressLogger {
	return &UploadProgressLogger{
		logger:      logger,
		prefix:      prefix,
		chunkNumber: 1,
		fileSize:    fileSize,
	}
}

// Read fulfills the io.Reader interface minio requires of a progress
// reader. It prints progress updates into the worker log, trying not
// to be too verbose.
func (u *UploadProgressLogger) Read(p []byte) (n int, err error) {
	u.totalBytes += int64(len(p))
	pctComplete := u.PercentComplete()
	if u.shouldPrint(pctComplete) {
		u.logger.Infof("%s : chunk %d, %d of %d bytes, %3.2f%% complete",
			u.prefix, u.chunkNumber, u.totalBytes, u.fileSize, pctComplete)
		u.lastPctPrinted = pctComplete
	}
	u.chunkNumber++
	return len(p), nil
}

// PercentComplete returns how much of the file has gone out.
func (u *UploadProgressLogger) PercentComplete() float64 {
	if u.fileSize <= 0 {
		return 100.0
	}
	return float64(u.totalBytes) / float64(u.fileSize) * 100
}

// shouldPrint returns true if the logger should print a message.
// Small packages upload quickly, so we don't log them at all. Larger
// ones log at intervals that shrink as the file grows.
func (u *UploadProgressLogger) shouldPrint(pctComplete float64) bool {
	diff := pctComplete - u.lastPctPrinted
	if u.fileSize > _10GB {
		return diff >= 1.0
	}
	if u.fileSize > _1GB {
		return diff >= 5.0
	}
	if u.fileSize > _100MB {
		return diff >= 20.0
	}
	return false
}
