// Package poll is a small discount poll: it learns the client's name, asks for
// their food mood and rewards repeat visitors with a bigger discount.
package poll

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/luma/sprt/protocol"
	"github.com/luma/sprt/session"
)

const Name = "Poll"

const (
	attrFirstName = "FName"
	attrLastName  = "LName"
	attrRepeat    = "Repeat"
)

type offer struct {
	restaurant string
	percentOff int
}

var (
	offers = map[string]offer{
		"MEXICAN": {"Tacopia", 20},
		"ITALIAN": {"Pastastic", 25},
	}

	defaultOffer = offer{"McDonalds", 10}
)

// New returns the initial step of a poll session
func New() session.Step {
	return session.NewStep(Name, "", session.WithHandler(0, start))
}

func Register(r *session.Registry) error {
	return r.Register(Name, New)
}

func start(req *protocol.Request, _ []string) (session.StepResult, error) {
	attrs := req.Attributes()

	first, okFirst := attrs.Get(attrFirstName)
	last, okLast := attrs.Get(attrLastName)

	if okFirst && okLast {
		return session.Transition(foodStep(first, last), nil)
	}

	return session.Transition(nameStep(), nil)
}

func nameStep() session.Step {
	return session.NewStep("NameStep", "Name (First Last)> ", session.WithHandler(2,
		func(req *protocol.Request, params []string) (session.StepResult, error) {
			attrs, err := protocol.AttributesOf(attrFirstName, params[0], attrLastName, params[1])
			if err != nil {
				return session.StepResult{}, err
			}

			return session.Transition(foodStep(params[0], params[1]), attrs)
		}))
}

func foodStep(first, last string) session.Step {
	return session.NewStep("FoodStep", first+"'s Food mood> ", session.WithHandler(1,
		func(req *protocol.Request, params []string) (session.StepResult, error) {
			repeat := 0

			if value, ok := req.Attributes().Get(attrRepeat); ok {
				n, err := strconv.Atoi(value)
				if err != nil {
					return session.End(protocol.StatusError, "Repeat (in cookie list) must be integer", nil)
				}

				repeat = n
			}

			repeat++

			o, ok := offers[strings.ToUpper(params[0])]
			if !ok {
				o = defaultOffer
			}

			attrs, err := protocol.AttributesOf(attrRepeat, strconv.Itoa(repeat))
			if err != nil {
				return session.StepResult{}, err
			}

			msg := fmt.Sprintf("%d%% + %d%% off at %s", o.percentOff, repeat, o.restaurant)
			return session.End(protocol.StatusOK, msg, attrs)
		}))
}
