package world

import "errors"

// ErrNotFound возвращается, когда операция адресует координату,
// которой нет в соответствующем отображении (мир или Shown).
var ErrNotFound = errors.New("блок не найден")
