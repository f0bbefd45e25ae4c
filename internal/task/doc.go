// Package task runs background jobs on a fixed schedule, chiefly the
// periodic parameter fit that retrains the scheduler from accumulated
// review logs.
package task
