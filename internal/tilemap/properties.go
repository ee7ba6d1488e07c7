package tilemap

// Property - пара ключ/значение слоя
type Property struct {
	Key   string `json:"key" bson:"key"`
	Value string `json:"value" bson:"value"`
}

// Properties - упорядоченный список свойств с поиском первого совпадения.
// Это не словарь: повторный ключ сохраняется, но Get всегда вернёт первое значение.
type Properties struct {
	items []Property
}

// NewProperties создаёт список из пар в заданном порядке
func NewProperties(pairs ...Property) Properties {
	items := make([]Property, len(pairs))
	copy(items, pairs)
	return Properties{items: items}
}

// Add добавляет пару в конец списка, не проверяя дубликаты
func (p *Properties) Add(key, value string) {
	p.items = append(p.items, Property{Key: key, Value: value})
}

// Has проверяет наличие ключа
func (p Properties) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Get возвращает значение первой пары с данным ключом
func (p Properties) Get(key string) (string, bool) {
	for _, it := range p.items {
		if it.Key == key {
			return it.Value, true
		}
	}
	return "", false
}

// Len возвращает количество пар, включая дубликаты
func (p Properties) Len() int {
	return len(p.items)
}

// Keys возвращает ключи в порядке объявления
func (p Properties) Keys() []string {
	keys := make([]string, len(p.items))
	for i, it := range p.items {
		keys[i] = it.Key
	}
	return keys
}

// Values возвращает значения в порядке объявления
func (p Properties) Values() []string {
	values := make([]string, len(p.items))
	for i, it := range p.items {
		values[i] = it.Value
	}
	return values
}

// All возвращает копию всех пар
func (p Properties) All() []Property {
	out := make([]Property, len(p.items))
	copy(out, p.items)
	return out
}
