package log

// Field is a single piece of structured context attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// Str builds a string-valued Field.
func Str(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int builds an int-valued Field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 builds an int64-valued Field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Uint64 builds a uint64-valued Field.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Bool builds a bool-valued Field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Err builds a Field named "error" from an error value.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any builds a Field from an arbitrary value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Component builds the field WithComponent uses to tag every subsequent
// entry with the emitting subsystem's name.
func Component(name string) Field {
	return Field{Key: ComponentKey, Value: name}
}

func fieldsToMap(fields []Field) Fields {
	if len(fields) == 0 {
		return nil
	}
	m := make(Fields, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}
