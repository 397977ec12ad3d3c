package tasks

// TaskSchedulerInterface defines the interface for background task
// scheduling. Used by the main application to manage the worker pool and by
// the API to trigger on-demand syncs.
// Example usage:
//
//	scheduler := NewScheduler(engine, feedRepo, articleRepo, categoryRepo, extractor, httpClient, seeds)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewSyncFeedTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
