package ta

// Last 返回序列倒数第 position+1 个值
func Last(s []float64, position int) float64 {
	return s[len(s)-1-position]
}

// Crossover s1 上穿 s2
func Crossover(s1, s2 []float64) bool {
	return Last(s1, 0) > Last(s2, 0) && Last(s1, 1) <= Last(s2, 1)
}

// Crossunder s1 下穿 s2
func Crossunder(s1, s2 []float64) bool {
	return Last(s1, 0) <= Last(s2, 0) && Last(s1, 1) > Last(s2, 1)
}

func Cross(s1, s2 []float64) bool {
	return Crossunder(s1, s2) || Crossover(s1, s2)
}

// LastValues 返回序列最后 size 个值
func LastValues(s []float64, size int) []float64 {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Lowest 最近 period 个值中的最小值
func Lowest(s []float64, period int) float64 {
	arr := LastValues(s, period)
	minVal := arr[0]
	for _, value := range arr {
		if value < minVal {
			minVal = value
		}
	}
	return minVal
}

// Highest 最近 period 个值中的最大值
func Highest(s []float64, period int) float64 {
	arr := LastValues(s, period)
	maxVal := arr[0]
	for _, value := range arr {
		if value > maxVal {
			maxVal = value
		}
	}
	return maxVal
}

// Mean 算术平均值
func Mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}
