package schema

import "strings"

// DataType тег типа колонки. Значения совпадают с именами JDBC-подобных
// типов, которые понимают дамп, загрузчик и связывание параметров.
type DataType string

// Поддерживаемые теги типов
const (
	TypeBoolean   DataType = "BOOLEAN"
	TypeSmallint  DataType = "SMALLINT"
	TypeInteger   DataType = "INTEGER"
	TypeBigint    DataType = "BIGINT"
	TypeNumeric   DataType = "NUMERIC"
	TypeFloat     DataType = "FLOAT"
	TypeDouble    DataType = "DOUBLE"
	TypeChar      DataType = "CHAR"
	TypeVarchar   DataType = "VARCHAR"
	TypeClob      DataType = "CLOB"
	TypeDate      DataType = "DATE"
	TypeTime      DataType = "TIME"
	TypeTimestamp DataType = "TIMESTAMP"
	TypeBinary    DataType = "BINARY"
	TypeOther     DataType = "OTHER"
)

// IsNumericType проверяет является ли тип числовым
func IsNumericType(t DataType) bool {
	switch t {
	case TypeSmallint, TypeInteger, TypeBigint, TypeNumeric, TypeFloat, TypeDouble:
		return true
	default:
		return false
	}
}

// IsWholeNumberType true для целочисленных типов
func IsWholeNumberType(t DataType) bool {
	return t == TypeSmallint || t == TypeInteger || t == TypeBigint
}

// IsTextType проверяет является ли тип текстовым
func IsTextType(t DataType) bool {
	switch t {
	case TypeChar, TypeVarchar, TypeClob:
		return true
	default:
		return false
	}
}

// IsDateTimeType проверяет является ли тип временным
func IsDateTimeType(t DataType) bool {
	switch t {
	case TypeDate, TypeTime, TypeTimestamp:
		return true
	default:
		return false
	}
}

// IsBinaryType проверяет является ли тип бинарным
func IsBinaryType(t DataType) bool {
	return t == TypeBinary
}

// FromDatabaseType отображает имя типа, сообщаемое драйвером
// (sql.ColumnType.DatabaseTypeName), в тег. Имена у драйверов разные:
// INT4/INT8 у pgx, BIGINT у mysql, NVARCHAR у mssql и т.д.
func FromDatabaseType(dbType string) DataType {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i > 0 {
		t = t[:i]
	}
	t = strings.TrimPrefix(t, "UNSIGNED ")
	t = strings.TrimSuffix(t, " UNSIGNED")

	switch t {
	case "BOOL", "BOOLEAN", "BIT":
		return TypeBoolean
	case "TINYINT", "SMALLINT", "INT2":
		return TypeSmallint
	case "INT", "INTEGER", "INT4", "MEDIUMINT", "SERIAL", "YEAR":
		return TypeInteger
	case "BIGINT", "INT8", "BIGSERIAL":
		return TypeBigint
	case "DECIMAL", "NUMERIC", "NUMBER", "MONEY", "SMALLMONEY":
		return TypeNumeric
	case "REAL", "FLOAT", "FLOAT4":
		return TypeFloat
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT8":
		return TypeDouble
	case "CHAR", "NCHAR", "BPCHAR", "CHARACTER":
		return TypeChar
	case "VARCHAR", "NVARCHAR", "VARCHAR2", "CHARACTER VARYING", "STRING", "UUID", "ENUM", "SET", "JSON", "JSONB", "UNIQUEIDENTIFIER", "VARCHAR_IGNORECASE":
		return TypeVarchar
	case "TEXT", "NTEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "CLOB", "NCLOB", "XML":
		return TypeClob
	case "DATE":
		return TypeDate
	case "TIME", "TIMETZ", "TIME WITH TIME ZONE":
		return TypeTime
	case "DATETIME", "DATETIME2", "SMALLDATETIME", "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "DATETIMEOFFSET":
		return TypeTimestamp
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BYTEA", "BINARY", "VARBINARY", "IMAGE", "LONGVARBINARY", "RAW":
		return TypeBinary
	default:
		// SQLite отдает пустое имя для выражений и колонок без типа
		return TypeOther
	}
}
