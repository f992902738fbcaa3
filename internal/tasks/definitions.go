package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	RegisterHandler(GenerateOrdersTask.TaskID(), GenerateOrdersTask.HandleExecution)
	RegisterHandler(RequestPaymentURLsTask.TaskID(), RequestPaymentURLsTask.HandleExecution)
}
