// Package report turns project lists into chart-ready aggregates and dashboard views.
package report

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"pmo-dashboard/internal/models"
)

// Undefined is the label used for projects with no value under the grouping key.
const Undefined = "Não definido"

// Well-known grouping keys.
const (
	KeyStatus   = "status_atual"
	KeyPriority = "prioridade"
	KeyOwner    = "responsavel"
	KeyArea     = "area_solicitante"
)

// FrequencyTable holds parallel label/count slices in first-seen label order.
type FrequencyTable struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// Count returns the count recorded for label.
func (f FrequencyTable) Count(label string) int {
	for i, l := range f.Labels {
		if l == label {
			return f.Data[i]
		}
	}
	return 0
}

// Total returns the sum of all counts.
func (f FrequencyTable) Total() int {
	n := 0
	for _, d := range f.Data {
		n += d
	}
	return n
}

// GroupBy counts projects per distinct value of key.
// key is a JSON field name of models.Project; owner and area group by display name.
func GroupBy(projects []models.Project, key string) FrequencyTable {
	table := FrequencyTable{Labels: []string{}, Data: []int{}}
	index := make(map[string]int)
	for i := range projects {
		label := labelFor(&projects[i], key)
		if pos, ok := index[label]; ok {
			table.Data[pos]++
			continue
		}
		index[label] = len(table.Labels)
		table.Labels = append(table.Labels, label)
		table.Data = append(table.Data, 1)
	}
	return table
}

func labelFor(p *models.Project, key string) string {
	var v string
	switch key {
	case KeyStatus:
		v = string(p.Status)
	case KeyPriority:
		v = p.Priority
	case KeyOwner:
		if p.Owner != nil {
			v = p.Owner.FullName
		}
	case KeyArea:
		if p.RequestingArea != nil {
			v = p.RequestingArea.Name
		}
	default:
		v = scalarField(p, key)
	}
	if strings.TrimSpace(v) == "" {
		return Undefined
	}
	return v
}

var (
	fieldIndexOnce sync.Once
	fieldIndex     map[string]int
)

// scalarField reads a scalar Project field by its JSON name. Zero values read as "".
func scalarField(p *models.Project, key string) string {
	fieldIndexOnce.Do(func() {
		fieldIndex = make(map[string]int)
		t := reflect.TypeOf(models.Project{})
		for i := 0; i < t.NumField(); i++ {
			name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
			if name != "" && name != "-" {
				fieldIndex[name] = i
			}
		}
	})

	i, ok := fieldIndex[key]
	if !ok {
		return ""
	}
	v := reflect.ValueOf(p).Elem().Field(i)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if v.IsZero() {
		return ""
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Struct, reflect.Slice, reflect.Map:
		return ""
	default:
		return fmt.Sprint(v.Interface())
	}
}
