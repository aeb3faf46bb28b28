// Package sqlite предоставляет подключение к SQLite (modernc.org/sqlite),
// транзакции с повторами при SQLITE_BUSY и миграции golang-migrate.
//
// Ошибки, которые триггеры поднимают через RAISE(ABORT, ...), возвращаются
// как *sqlite.Error. TxRunner может сразу пропустить их через обработчик
// пользовательских ошибок:
//
//	runner := sqlite.NewTxRunner(db, sqlite.WithErrorMapper(handler.Handle))
//	err := runner.WithinTx(ctx, func(ctx context.Context) error {
//		_, err := runner.GetQuerier(ctx).ExecContext(ctx, "INSERT INTO orders (qty) VALUES (?)", 0)
//		return err
//	})
//	// err.Error() - переведенное сообщение из триггера
//
// Для тестов есть NewTestDBInMemory и NewTestDBFile.
package sqlite
