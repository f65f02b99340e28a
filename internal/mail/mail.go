// Package mail produces synthetic inbox traffic for the buffering demos.
package mail

import (
	"fmt"
	"iter"
)

// Email 一封待读邮件
type Email struct {
	ID   int
	Name string
}

// String 控制台输出格式
func (e Email) String() string {
	return fmt.Sprintf("Email Id: %d | Name: %s", e.ID, e.Name)
}

// Produce 惰性产生 quantity 封编号从0开始的邮件，quantity <= 0 时为空序列
func Produce(quantity int) iter.Seq[Email] {
	return func(yield func(Email) bool) {
		for i := 0; i < quantity; i++ {
			if !yield(Email{ID: i, Name: fmt.Sprintf("Email%d", i)}) {
				return
			}
		}
	}
}
