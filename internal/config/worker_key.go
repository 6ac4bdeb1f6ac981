package config

type WorkerKeyStruct struct {
	ImportJobsQueue       string
	ImportDeadLetterQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ImportJobsQueue:       "import_jobs_queue",
	ImportDeadLetterQueue: "import_jobs_dead_letter",
}
