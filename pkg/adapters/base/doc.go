// Package base предоставляет общие части адаптеров БД: соединение
// с диалектом и запросы к каталогу, одинаковые для нескольких СУБД.
//
// # Основные компоненты
//
// Conn - встраиваемая основа адаптера:
//   - DB(), Dialect(), URL(), Schema()
//   - Ping(), Close()
//   - ApplyPool() - лимиты пула из adapters.Config
//
// Каталог:
//   - QueryStrings() - список строк одной колонкой
//   - ContainsFold() - поиск таблицы без учета регистра
//   - NormalizeDefault() - приведение DEFAULT из каталога к литералу
//   - QuoteIdentifier() - экранирование идентификатора по диалекту
package base
