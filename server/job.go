package server

// RunningJob is a handle on a background component with an orderly
// shutdown: RequestStop asks it to stop, AwaitStop blocks until the
// shutdown hook has finished.
type RunningJob struct {
	stop chan struct{}
	done chan struct{}
}

func (job *RunningJob) RequestStop() {
	close(job.stop)
}

func (job *RunningJob) AwaitStop() {
	<-job.done
}

func SpawnJob(start func(), shutdown func()) RunningJob {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		<-stop
		shutdown()
		close(done)
	}()
	go start()
	return RunningJob{stop: stop, done: done}
}

func CombineJobs(jobs ...RunningJob) RunningJob {
	start := func() {}
	shutdown := func() {
		for _, job := range jobs {
			job.RequestStop()
		}
		for _, job := range jobs {
			job.AwaitStop()
		}
	}
	return SpawnJob(start, shutdown)
}
