package binder

import (
	"reflect"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/wippyai/hostbridge/guest"
)

// Precedence scores. Lower scores are more specific and sort first.
const (
	scoreStatic  = 3000
	scoreGeneric = 1
	scoreAny     = 3000
	scoreAnyList = 2500
	scoreList    = 100
	scoreObject  = -1
	scoreNamed   = 1
	scoreOther   = 2000
)

var (
	anyType      = reflect.TypeFor[any]()
	objectType   = reflect.TypeFor[*guest.Object]()
	decimalType  = reflect.TypeFor[apd.Decimal]()
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
)

func (c *Candidate) computeScore() int {
	score := 0
	if c.sig.Static {
		score += scoreStatic
	}
	if c.sig.Generic != nil {
		score += scoreGeneric
	}
	for _, p := range c.params {
		switch {
		case p.TypeArg != nil && p.TypeArg.Slice:
			score += scoreAnyList
		case p.TypeArg != nil:
			score += scoreAny
		default:
			score += TypeScore(p.valueType(), c.sig.Operator != "")
		}
	}
	return score
}

// TypeScore returns the precedence of a parameter type. Enumerations
// score as their underlying integer. Operators do not prefer raw guest
// objects.
func TypeScore(t reflect.Type, operator bool) int {
	switch t {
	case anyType:
		return scoreAny
	case objectType:
		if operator {
			return scoreAny
		}
		return scoreObject
	case decimalType:
		return 2
	case timeType, durationType:
		return scoreNamed
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem() == anyType || t.Elem() == objectType {
			return scoreAnyList
		}
		return scoreList + TypeScore(t.Elem(), operator)
	case reflect.Float64:
		return 3
	case reflect.Float32:
		return 4
	case reflect.Int64, reflect.Int:
		return 21
	case reflect.Int32:
		return 22
	case reflect.Int16:
		return 23
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return 24
	case reflect.Uint32:
		return 25
	case reflect.Uint16:
		return 26
	case reflect.Uint8:
		return 28
	case reflect.Int8:
		return 29
	case reflect.String:
		return 30
	case reflect.Bool:
		return 40
	case reflect.Struct, reflect.Pointer, reflect.Map, reflect.Interface:
		return scoreNamed
	}
	return scoreOther
}
