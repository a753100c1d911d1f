package auditsink

var NewKafkaSinkWithWriter = newKafkaSinkWithWriter
